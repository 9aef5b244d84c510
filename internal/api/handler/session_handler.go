package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

// SessionHandler logs callers in and out of cookie sessions.
type SessionHandler struct {
	authService ports.AuthService
	sessions    ports.SessionService
	cookieName  string
	secure      bool
}

func NewSessionHandler(authService ports.AuthService, sessions ports.SessionService, cookieName string, secure bool) *SessionHandler {
	return &SessionHandler{
		authService: authService,
		sessions:    sessions,
		cookieName:  cookieName,
		secure:      secure,
	}
}

// Login checks credentials and sets the session cookie.
//
// @Summary      Start a cookie session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      sessionRequest  true  "Credentials"
// @Success      200   {object}  identityResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/session [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	identity, err := h.authService.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	id, err := h.sessions.CreateSession(ctx, identity)
	if err != nil {
		return err
	}

	metrics.SessionsCreatedTotal.Inc()
	c.SetCookie(h.cookie(id, 0))
	return c.JSON(http.StatusOK, identityResponse{Username: identity.Username, Role: identity.Role})
}

// Logout destroys the current session, if any, and clears the cookie.
//
// @Summary      End the cookie session
// @Tags         auth
// @Success      204
// @Router       /auth/session [delete]
func (h *SessionHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		if err := h.sessions.DestroySession(c.Request().Context(), cookie.Value); err != nil {
			return err
		}
	}
	c.SetCookie(h.cookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
