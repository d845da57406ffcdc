package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/cache"
	"github.com/fardelhq/shop/internal/config"
	"github.com/fardelhq/shop/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
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

func newService(db *gorm.DB) *TokenService {
	return &TokenService{
		DB:            db,
		Cache:         cache.NewMemory(),
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func createUser(t *testing.T, db *gorm.DB, email string, staff, admin bool) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "x", IsStaff: staff, IsAdmin: admin}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestIssueAndVerifyPair(t *testing.T) {
	db := initTestDB(t)
	ts := newService(db)
	ctx := context.Background()

	access, refresh, err := ts.IssuePair("alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, access, refresh)

	accessClaims, err := ts.VerifyAccess(ctx, access)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", accessClaims.Subject)
	require.NotEmpty(t, accessClaims.ID)

	refreshClaims, err := ts.VerifyRefresh(ctx, refresh)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", refreshClaims.Subject)
	require.NotEqual(t, accessClaims.ID, refreshClaims.ID)

	// Cross-type verification must fail.
	_, err = ts.VerifyRefresh(ctx, access)
	require.Error(t, err)
	_, err = ts.VerifyAccess(ctx, refresh)
	require.Error(t, err)
}

func TestRevokeIsDurable(t *testing.T) {
	db := initTestDB(t)
	ts := newService(db)
	ctx := context.Background()

	access, _, err := ts.IssuePair("alice@example.com")
	require.NoError(t, err)

	claims, err := ts.VerifyAccess(ctx, access)
	require.NoError(t, err)

	require.NoError(t, ts.Revoke(ctx, claims.ID))

	_, err = ts.VerifyAccess(ctx, access)
	require.ErrorIs(t, err, ErrRevoked)

	// Revoking twice is idempotent: still one row.
	require.NoError(t, ts.Revoke(ctx, claims.ID))
	var count int64
	require.NoError(t, db.Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRevocationSurvivesColdCache(t *testing.T) {
	db := initTestDB(t)
	ts := newService(db)
	ctx := context.Background()

	access, _, err := ts.IssuePair("alice@example.com")
	require.NoError(t, err)
	claims, err := ts.VerifyAccess(ctx, access)
	require.NoError(t, err)
	require.NoError(t, ts.Revoke(ctx, claims.ID))

	// A fresh cache must still see the revocation through the DB row.
	ts.Cache = cache.NewMemory()
	revoked, err := ts.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRequireStaffCookie(t *testing.T) {
	db := initTestDB(t)
	ts := newService(db)
	e := echo.New()

	createUser(t, db, "staff@example.com", true, false)
	createUser(t, db, "customer@example.com", false, false)

	staffAccess, _, err := ts.IssuePair("staff@example.com")
	require.NoError(t, err)
	customerAccess, _, err := ts.IssuePair("customer@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders/list", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: staffAccess})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, ts.RequireStaff(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/orders/list", nil)
	req2.AddCookie(&http.Cookie{Name: "accessToken", Value: customerAccess})
	c2 := e.NewContext(req2, httptest.NewRecorder())
	err = ts.RequireStaff(okHandler)(c2)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestRequireStaffAdminAllowed(t *testing.T) {
	db := initTestDB(t)
	ts := newService(db)
	e := echo.New()

	createUser(t, db, "admin@example.com", false, true)

	adminAccess, _, err := ts.IssuePair("admin@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders/list", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminAccess)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, ts.RequireStaff(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAccessUnknownUser(t *testing.T) {
	db := initTestDB(t)
	ts := newService(db)
	e := echo.New()

	access, _, err := ts.IssuePair("ghost@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
	c := e.NewContext(req, httptest.NewRecorder())
	err = ts.RequireAccess(okHandler)(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
	require.Equal(t, "Error loading the user", he.Message)
}
