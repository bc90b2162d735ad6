package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/collabhub/internal/domain"
)

// UserContextKey holds the authenticated *domain.User on the echo context.
const UserContextKey = "user"

// TokenVerifier resolves a bearer token to a user ID.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// TokenAuth authenticates the request from an "Authorization: Bearer" header
// or a "token" query parameter, for browsers that cannot set headers on a
// websocket upgrade. The user must exist and be active. Every failure answers
// 401 with the same body so callers learn nothing about the cause.
func TokenAuth(verifier TokenVerifier, users domain.UserDirectory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			logger := FromContext(ctx)

			token := bearerToken(c.Request())
			if token == "" {
				logger.Debug("Connect rejected: no token")
				return unauthorized(c)
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Info("Connect rejected: invalid token", "error", err)
				return unauthorized(c)
			}

			user, err := users.GetUser(ctx, userID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					logger.Error("Failed to load user for token", "user_id", userID, "error", err)
				}
				return unauthorized(c)
			}
			if !user.IsActive() {
				logger.Info("Connect rejected: account not active", "user_id", userID, "status", user.Status)
				return unauthorized(c)
			}

			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}

// RequireAdmin lets through only users that TokenAuth resolved to an
// administrator. It must run after TokenAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return unauthorized(c)
			}
			if !user.IsAdmin {
				FromContext(c.Request().Context()).Info("Diagnostics refused to non-admin", "user_id", user.ID)
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
			}
			return next(c)
		}
	}
}

// CurrentUser returns the user stored by TokenAuth.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication error"})
}
