package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	scheme      string
}

// NewAuthHandler creates an AuthHandler. scheme labels the issued-token metric.
func NewAuthHandler(authService ports.AuthService, scheme string) *AuthHandler {
	return &AuthHandler{authService: authService, scheme: scheme}
}

// Token issues an access token through the password grant.
//
// JSON bodies get {accessToken, tokenType, expiresIn}. Form-encoded bodies are
// treated as OAuth2 requests: client credentials come from the form or HTTP
// Basic auth, and the response follows RFC 6749.
//
// @Summary      Issue an access token
// @Tags         auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        body  body      tokenRequest  true  "Credentials"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/token [post]
func (h *AuthHandler) Token(c echo.Context) error {
	if isForm(c) {
		return h.oauthToken(c)
	}

	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	clientID, clientSecret := req.ClientID, req.ClientSecret
	if id, secret, ok := c.Request().BasicAuth(); ok && clientID == "" {
		clientID, clientSecret = id, secret
	}

	token, err := h.authService.IssueToken(c.Request().Context(), ports.TokenRequest{
		GrantType:    req.GrantType,
		Username:     req.Username,
		Password:     req.Password,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.WithLabelValues(h.scheme).Inc()
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token.Value,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   expiresIn(token),
	})
}

func (h *AuthHandler) oauthToken(c echo.Context) error {
	req := ports.TokenRequest{
		GrantType:    c.FormValue("grant_type"),
		Username:     c.FormValue("username"),
		Password:     c.FormValue("password"),
		ClientID:     c.FormValue("client_id"),
		ClientSecret: c.FormValue("client_secret"),
	}
	if req.GrantType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "grant_type is required")
	}
	if id, secret, ok := c.Request().BasicAuth(); ok && req.ClientID == "" {
		req.ClientID, req.ClientSecret = id, secret
	}

	token, err := h.authService.IssueToken(c.Request().Context(), req)
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.WithLabelValues(h.scheme).Inc()
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, oauthTokenResponse{
		AccessToken: token.Value,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   expiresIn(token),
	})
}

// Register creates a user account with the user role.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  identityResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.CreateUser(c.Request().Context(), req.Username, req.Password, domain.RoleUser)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, identityResponse{Username: user.Username, Role: user.Role})
}

// ChangePassword replaces the caller's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  changePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.authService.ChangePassword(c.Request().Context(), identity.Username, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetRole changes another user's role. Already issued tokens keep the old role.
//
// @Summary      Set a user's role
// @Tags         admin
// @Accept       json
// @Security     BearerAuth
// @Param        username  path  string          true  "Username"
// @Param        body      body  setRoleRequest  true  "New role"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /admin/users/{username}/role [put]
func (h *AuthHandler) SetRole(c echo.Context) error {
	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.authService.SetRole(c.Request().Context(), c.Param("username"), req.Role); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func isForm(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm)
}

func expiresIn(token *domain.Token) int64 {
	return int64(token.ExpiresAt.Sub(token.IssuedAt).Seconds())
}
