package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{"invalid client", domain.ErrInvalidClient, http.StatusUnauthorized, `{"error":"invalid client"}`},
		{"expired token", domain.ErrTokenExpired, http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"unknown token", domain.ErrUnauthorized, http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"unsupported grant", domain.ErrUnsupportedGrant, http.StatusBadRequest, `{"error":"unsupported grant type"}`},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, `{"error":"forbidden"}`},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest, `{"error":"invalid input"}`},
		{"empty object", domain.ErrEmptyObject, http.StatusBadRequest, `{"error":"no file uploaded"}`},
		{"too large", domain.ErrObjectTooLarge, http.StatusRequestEntityTooLarge, `{"error":"file too large"}`},
		{"object not found", domain.ErrObjectNotFound, http.StatusNotFound, `{"error":"file not found"}`},
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound, `{"error":"user not found"}`},
		{"user exists", domain.ErrUserExists, http.StatusConflict, `{"error":"user already exists"}`},
		{"upload in progress", domain.ErrUploadInProgress, http.StatusConflict, `{"error":"upload with this idempotency key in progress"}`},
		{
			"storage failure hides cause",
			fmt.Errorf("%w: upload: %w", domain.ErrStorageFailure, errors.New("bucket on fire")),
			http.StatusInternalServerError,
			`{"error":"storage operation failed"}`,
		},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, `{"error":"internal server error"}`},
		{"echo error", echo.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot, `{"error":"short and stout"}`},
	}

	handler := NewHTTPErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handler(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Body.String(); got != tt.wantBody+"\n" {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestHTTPErrorHandler_WrappedDomainError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(fmt.Errorf("resolve: %w", domain.ErrForbidden), c)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestHTTPErrorHandler_Head(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodHead, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(domain.ErrObjectNotFound, c)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD response has body %q", rec.Body.String())
	}
}

func TestHTTPErrorHandler_Committed(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.String(http.StatusOK, "done")

	NewHTTPErrorHandler(zerolog.Nop())(errors.New("late"), c)

	if rec.Code != http.StatusOK || rec.Body.String() != "done" {
		t.Errorf("committed response was rewritten: %d %q", rec.Code, rec.Body.String())
	}
}
