package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// RBAC enforces role-based access control. Every allowed role is listed
// explicitly; there is no hierarchy, so RBAC("user") rejects admins.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, _ := IdentityFrom(c)
			if err := domain.AuthorizeAny(identity, allowedRoles...); err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
