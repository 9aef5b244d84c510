package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Keeps authentication failures generic so callers cannot tell an unknown
//     username from a wrong password, or an expired token from an unknown one.
//   - Logs unexpected and storage errors internally without leaking details.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusUnauthorized {
			metrics.AuthFailuresTotal.WithLabelValues("unauthorized").Inc()
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		metrics.AuthFailuresTotal.WithLabelValues("invalid_credentials").Inc()
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrInvalidClient):
		metrics.AuthFailuresTotal.WithLabelValues("invalid_client").Inc()
		return http.StatusUnauthorized, "invalid client"
	case errors.Is(err, domain.ErrTokenExpired):
		metrics.AuthFailuresTotal.WithLabelValues("expired").Inc()
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.AuthFailuresTotal.WithLabelValues("unauthorized").Inc()
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrUnsupportedGrant):
		metrics.AuthFailuresTotal.WithLabelValues("unsupported_grant").Inc()
		return http.StatusBadRequest, "unsupported grant type"
	case errors.Is(err, domain.ErrForbidden):
		metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrEmptyObject):
		return http.StatusBadRequest, "no file uploaded"
	case errors.Is(err, domain.ErrObjectTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, domain.ErrUploadInProgress):
		return http.StatusConflict, "upload with this idempotency key in progress"
	case errors.Is(err, domain.ErrStorageFailure):
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("storage operation failed")
		return http.StatusInternalServerError, "storage operation failed"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
