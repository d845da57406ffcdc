package token

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/cache"
	"github.com/fardelhq/shop/internal/models"
	"github.com/fardelhq/shop/internal/tokens"
)

// ErrRevoked means the token's jti is on the revocation list.
var ErrRevoked = errors.New("Token has been revoked")

const revokedKeyPrefix = "revoked:"

type TokenService struct {
	DB            *gorm.DB
	Cache         cache.Cache
	JWTSecret     []byte
	RefreshSecret []byte
}

func (t *TokenService) IssueAccess(subject string) (string, error) {
	return tokens.SignAccessToken(subject, t.JWTSecret)
}

func (t *TokenService) IssuePair(subject string) (string, string, error) {
	access, err := tokens.SignAccessToken(subject, t.JWTSecret)
	if err != nil {
		return "", "", err
	}
	refresh, err := tokens.SignRefreshToken(subject, t.RefreshSecret)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Revoke appends the jti to the revocation list. The cache entry is a
// convenience; the row is what makes the revocation durable.
func (t *TokenService) Revoke(ctx context.Context, jti string) error {
	row := models.RevokedToken{JTI: jti}
	if err := t.DB.WithContext(ctx).Where("jti = ?", jti).FirstOrCreate(&row).Error; err != nil {
		return err
	}
	if t.Cache != nil {
		_ = t.Cache.Set(ctx, revokedKeyPrefix+jti, "1", tokens.RefreshTTL)
	}
	return nil
}

func (t *TokenService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if t.Cache != nil {
		if _, err := t.Cache.Get(ctx, revokedKeyPrefix+jti); err == nil {
			return true, nil
		}
	}

	var count int64
	if err := t.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 && t.Cache != nil {
		_ = t.Cache.Set(ctx, revokedKeyPrefix+jti, "1", tokens.RefreshTTL)
	}
	return count > 0, nil
}

func (t *TokenService) verify(ctx context.Context, raw, typ string, secret []byte) (*tokens.Claims, error) {
	claims, err := tokens.ClaimsFromToken(raw, typ, secret)
	if err != nil {
		return nil, err
	}
	revoked, err := t.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (t *TokenService) VerifyAccess(ctx context.Context, raw string) (*tokens.Claims, error) {
	return t.verify(ctx, raw, tokens.TypeAccess, t.JWTSecret)
}

func (t *TokenService) VerifyRefresh(ctx context.Context, raw string) (*tokens.Claims, error) {
	return t.verify(ctx, raw, tokens.TypeRefresh, t.RefreshSecret)
}

// httpError maps verification failures onto the API's fixed contract:
// expiry and revocation are 401 with their fixed messages, everything else
// is 422 carrying the parser's reason.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, tokens.ErrExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	case errors.Is(err, ErrRevoked):
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has been revoked")
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// panelToken also accepts the accessToken cookie set for panel sessions.
func panelToken(c echo.Context) (string, bool) {
	if raw, ok := bearerToken(c); ok {
		return raw, true
	}
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func (t *TokenService) loadUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := t.DB.WithContext(ctx).Preload("Group.Permissions").
		Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (t *TokenService) authenticate(c echo.Context, raw, typ string) error {
	ctx := c.Request().Context()

	var (
		claims *tokens.Claims
		err    error
	)
	if typ == tokens.TypeRefresh {
		claims, err = t.VerifyRefresh(ctx, raw)
	} else {
		claims, err = t.VerifyAccess(ctx, raw)
	}
	if err != nil {
		return httpError(err)
	}

	user, err := t.loadUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Error loading the user")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.Set("user", user)
	c.Set("claims", claims)
	return nil
}

// RequireAccess gates JSON API routes on a valid, non-revoked access token.
func (t *TokenService) RequireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization Header")
		}
		if err := t.authenticate(c, raw, tokens.TypeAccess); err != nil {
			return err
		}
		return next(c)
	}
}

// RequireRefresh gates the refresh/logout-refresh routes.
func (t *TokenService) RequireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization Header")
		}
		if err := t.authenticate(c, raw, tokens.TypeRefresh); err != nil {
			return err
		}
		return next(c)
	}
}

// RequireStaff gates the HTML panel: access token via header or cookie,
// and the user must be staff or admin.
func (t *TokenService) RequireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := panelToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization Header")
		}
		if err := t.authenticate(c, raw, tokens.TypeAccess); err != nil {
			return err
		}
		user := CurrentUser(c)
		if user == nil || (!user.IsStaff && !user.IsAdmin) {
			return echo.NewHTTPError(http.StatusForbidden, "staff access required")
		}
		return next(c)
	}
}

// RequireAdmin gates product administration.
func (t *TokenService) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := panelToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization Header")
		}
		if err := t.authenticate(c, raw, tokens.TypeAccess); err != nil {
			return err
		}
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}

func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get("user").(*models.User); ok {
		return u
	}
	return nil
}

func CurrentClaims(c echo.Context) *tokens.Claims {
	if cl, ok := c.Get("claims").(*tokens.Claims); ok {
		return cl
	}
	return nil
}
