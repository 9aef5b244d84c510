package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

// Context keys set by Auth.
const (
	ContextIdentity = "identity"
	ContextUsername = "username"
	ContextRole     = "role"
)

// Auth resolves the caller from an "Authorization: Bearer <token>" header or,
// when sessions is non-nil and no header is sent, from the session cookie.
// The resolved domain.Identity is stored in the echo context.
func Auth(auth ports.AuthService, sessions ports.SessionService, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var (
				identity domain.Identity
				err      error
			)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			switch {
			case authHeader != "":
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
				}
				identity, err = auth.Validate(ctx, strings.TrimSpace(parts[1]))

			case sessions != nil:
				cookie, cerr := c.Cookie(cookieName)
				if cerr != nil || cookie.Value == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
				}
				identity, err = sessions.ResolveSession(ctx, cookie.Value)

			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if err != nil {
				return err
			}

			c.Set(ContextIdentity, identity)
			c.Set(ContextUsername, identity.Username)
			c.Set(ContextRole, identity.Role)

			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(ContextIdentity).(domain.Identity)
	return identity, ok
}
