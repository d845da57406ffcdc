package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrExpired   = errors.New("Token has expired")
	ErrWrongType = errors.New("wrong token type")
)

type Claims struct {
	Typ string `json:"typ"`
	jwt.RegisteredClaims
}

func NewJTI() string { return uuid.NewString() }

func sign(subject, typ string, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		Typ: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        NewJTI(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func SignAccessToken(subject string, secret []byte) (string, error) {
	return sign(subject, TypeAccess, AccessTTL, secret)
}

func SignRefreshToken(subject string, secret []byte) (string, error) {
	return sign(subject, TypeRefresh, RefreshTTL, secret)
}

// ClaimsFromToken verifies the signature and expiry and checks that the
// token is of the wanted type. Expiry is reported as ErrExpired so callers
// can map it to the fixed 401 message; any other failure keeps the parser's
// reason for the 422 response.
func ClaimsFromToken(tokenStr, wantTyp string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Typ != wantTyp {
		return nil, ErrWrongType
	}
	return &claims, nil
}
