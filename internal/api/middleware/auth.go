package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
)

const (
	// AccessTokenCookie is the cookie consulted when no Authorization
	// header is present.
	AccessTokenCookie = "access_token"

	userContextKey = "auth.user"
)

// ExtractBearer returns the raw access token from the Authorization header
// or, failing that, the access-token cookie. A header with a non-Bearer
// scheme is treated as absent, not as a malformed credential. Absence is not
// an error here; the empty string means no credential was presented.
func ExtractBearer(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate converts a bearer credential into an attached identity or
// rejects the request. Credential failures are undifferentiated; identity
// failures are not (the caller already holds a valid token).
func Authenticate(tokens ports.TokenService, users ports.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := resolveUser(c, tokens, users)
			if err != nil {
				return err
			}
			AttachUser(c, user)
			return next(c)
		}
	}
}

// OptionalAuth performs the same resolution as Authenticate but never
// rejects; an absent or invalid credential simply leaves no identity
// attached.
func OptionalAuth(tokens ports.TokenService, users ports.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user, err := resolveUser(c, tokens, users); err == nil {
				AttachUser(c, user)
			}
			return next(c)
		}
	}
}

// RequireAdmin must run after Authenticate; it gates on the attached
// identity's role.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !user.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "admin required")
			}
			return next(c)
		}
	}
}

// CurrentUser returns the identity attached by Authenticate or OptionalAuth.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(userContextKey).(*domain.User)
	return user, ok
}

// AttachUser stores the identity on the request context. Used by the auth
// middlewares and by tests that exercise handlers directly.
func AttachUser(c echo.Context, user *domain.User) {
	c.Set(userContextKey, user)
}

func resolveUser(c echo.Context, tokens ports.TokenService, users ports.UserRepository) (*domain.User, error) {
	token := ExtractBearer(c)
	if token == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	claims, err := tokens.VerifyAccess(token)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}

	user, err := users.FindByID(c.Request().Context(), claims.UserID)
	if err == domain.ErrUserNotFound {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	}
	return user, nil
}
