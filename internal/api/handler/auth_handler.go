package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Simon2219/BetterIntelligence/internal/api/middleware"
	"github.com/Simon2219/BetterIntelligence/internal/api/metrics"
	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
)

// RefreshTokenCookie carries the refresh credential between browser
// sessions. HttpOnly: the SPA never reads it.
const RefreshTokenCookie = "refresh_token"

type AuthHandler struct {
	authService   ports.AuthService
	refreshTTL    time.Duration
	secureCookies bool
}

func NewAuthHandler(authService ports.AuthService, refreshTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{authService: authService, refreshTTL: refreshTTL, secureCookies: secureCookies}
}

type signupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Username    string `json:"username" validate:"required,min=3,max=30"`
	DisplayName string `json:"displayName" validate:"required"`
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	UserID      string       `json:"userId,omitempty"`
	AccessToken string       `json:"accessToken"`
	ExpiresIn   int64        `json:"expiresIn"`
	User        *domain.User `json:"user,omitempty"`
}

// Signup creates an account and issues the first credential pair.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, pair, err := h.authService.Signup(c.Request().Context(), ports.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.Inc()
	h.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(http.StatusCreated, authResponse{
		UserID:      user.ID,
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		User:        user,
	})
}

// Login authenticates by email or username and issues a pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, pair, err := h.authService.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.Inc()
	h.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(http.StatusOK, authResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		User:        user,
	})
}

// Refresh rotates the refresh credential from the cookie or request body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshTokenFrom(c)
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token required")
	}

	user, pair, err := h.authService.Refresh(c.Request().Context(), raw)
	if err != nil {
		metrics.TokenRotationsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	metrics.TokenRotationsTotal.WithLabelValues("ok").Inc()
	h.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(http.StatusOK, authResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		User:        user,
	})
}

// Logout revokes the presented refresh credential and clears the cookie.
// Runs behind Authenticate.
func (h *AuthHandler) Logout(c echo.Context) error {
	if raw := h.refreshTokenFrom(c); raw != "" {
		if err := h.authService.Logout(c.Request().Context(), raw); err != nil {
			return err
		}
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Session returns the authenticated identity. Runs behind Authenticate.
func (h *AuthHandler) Session(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, map[string]*domain.User{"user": user})
}

func (h *AuthHandler) refreshTokenFrom(c echo.Context) string {
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req refreshRequest
	if err := c.Bind(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
