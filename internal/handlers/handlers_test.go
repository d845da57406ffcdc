package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/cache"
	"github.com/fardelhq/shop/internal/config"
	"github.com/fardelhq/shop/internal/models"
	"github.com/fardelhq/shop/internal/mykafka"
	"github.com/fardelhq/shop/internal/service/token"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// testRenderer stands in for the embedded panel templates; panel tests
// assert DB effects and redirects, not markup.
type testRenderer struct{}

func (r *testRenderer) Render(w io.Writer, name string, _ interface{}, _ echo.Context) error {
	_, err := w.Write([]byte(name))
	return err
}

func InitTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	e.Renderer = &testRenderer{}
	return e
}

func newTokenService(db *gorm.DB) *token.TokenService {
	return &token.TokenService{
		DB:            db,
		Cache:         cache.NewMemory(),
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func newAuthHandler(db *gorm.DB) (*AuthHandler, *token.TokenService) {
	ts := newTokenService(db)
	h := &AuthHandler{
		DB:       db,
		Tokens:   ts,
		Producer: &mykafka.Producer{},
	}
	return h, ts
}

func jsonRequest(e *echo.Echo, method, target string, payload interface{}) (echo.Context, *httptest.ResponseRecorder) {
	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func createUser(t *testing.T, db *gorm.DB, email, passwordHash string, staff, admin bool) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		IsStaff:      staff,
		IsAdmin:      admin,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func httpErrorCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func httpErrorMessage(t *testing.T, err error) string {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	if s, ok := he.Message.(string); ok {
		return s
	}
	t.Fatalf("expected string message, got %T", he.Message)
	return ""
}
