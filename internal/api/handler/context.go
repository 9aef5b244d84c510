package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/upload-gateway/internal/api/middleware"
	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// ctxIdentity extracts the identity injected by the Auth middleware and
// fails fast before any service call when it is absent: a role must be
// present, which proves the middleware ran.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok || identity.Role == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return identity, nil
}
