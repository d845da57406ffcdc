package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fardelhq/shop/internal/hash"
	"github.com/fardelhq/shop/internal/logging"
	"github.com/fardelhq/shop/internal/metrics"
	"github.com/fardelhq/shop/internal/models"
	"github.com/fardelhq/shop/internal/mykafka"
	"github.com/fardelhq/shop/internal/service/token"
)

// Fixed API messages, kept character for character from the original
// deployment so existing clients keep matching on them.
const (
	msgInvalidForm    = "Unvalid form submitted"
	msgEmailTaken     = "A user with this email already exists."
	msgBadCredentials = "Username or password is not correct"
	msgRegistered     = "Successfully registered"
	msgLogined        = "Successfully logined"
	msgAccessRevoked  = "Access token has been revoked"
	msgRefreshRevoked = "Refresh token has been revoked"
	msgProfileUpdated = "Profile successfully updated"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.TokenService
	Producer *mykafka.Producer
}

type registerRequest struct {
	Email     string `json:"email"      validate:"required"`
	Password  string `json:"password"   validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileUpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidForm)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidForm)
	}

	var existing models.User
	err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, msgEmailTaken)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: pwHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Error("register_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	access, refresh, err := h.Tokens.IssuePair(user.Email)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	metrics.RegistrationsTotal.Inc()
	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_registered",
		"UserID": user.ID,
		"email":  user.Email,
	})
	l.Info("register_successful", "user_id", user.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"message":       msgRegistered,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidForm)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidForm)
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Preload("Group.Permissions").
		Where("email = ?", req.Email).First(&user).Error; err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, msgBadCredentials)
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		l.Warn("login_failed", "status", 401, "user_id", user.ID)
		return echo.NewHTTPError(http.StatusUnauthorized, msgBadCredentials)
	}

	access, refresh, err := h.Tokens.IssuePair(user.Email)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	obj := echo.Map{
		"message":       msgLogined,
		"access_token":  access,
		"refresh_token": refresh,
	}
	if summary := user.AccessSummary(); summary != nil {
		obj["access"] = summary
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_logged_in",
		"UserID": user.ID,
		"email":  user.Email,
	})
	l.Info("login_successful", "user_id", user.ID)

	return c.JSON(http.StatusOK, obj)
}

// LogOut revokes the presented access token by jti. Route is gated by
// RequireAccess, so the claims are always present here.
func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	claims := token.CurrentClaims(c)

	if err := h.Tokens.Revoke(ctx, claims.ID); err != nil {
		logging.FromContext(ctx).Error("logout_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	metrics.TokenRevocationsTotal.WithLabelValues("access").Inc()
	if user := token.CurrentUser(c); user != nil {
		h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
			"type":   "user_logged_out",
			"UserID": user.ID,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": msgAccessRevoked})
}

// LogOutRefresh is the same revocation for the refresh token.
func (h *AuthHandler) LogOutRefresh(c echo.Context) error {
	ctx := c.Request().Context()
	claims := token.CurrentClaims(c)

	if err := h.Tokens.Revoke(ctx, claims.ID); err != nil {
		logging.FromContext(ctx).Error("logout_refresh_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	metrics.TokenRevocationsTotal.WithLabelValues("refresh").Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": msgRefreshRevoked})
}

// RefreshToken mints a new access token for the refresh token's subject.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	claims := token.CurrentClaims(c)

	access, err := h.Tokens.IssueAccess(claims.Subject)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("refresh_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"access_token": access})
}

func (h *AuthHandler) Profile(c echo.Context) error {
	user := token.CurrentUser(c)
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// UpdateProfile applies only the fields that were supplied and non-empty;
// everything omitted keeps its prior value.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_profile_update")
	user := token.CurrentUser(c)

	var req profileUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidForm)
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			l.Error("profile_update_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		user.PasswordHash = pwHash
	}

	if err := h.DB.WithContext(ctx).Save(user).Error; err != nil {
		l.Error("profile_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("profile_updated", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": msgProfileUpdated,
		"user":    user,
	})
}
