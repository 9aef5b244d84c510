package domain

import "errors"

// Authentication failures. ErrUnauthorized and ErrTokenExpired surface identically.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidClient      = errors.New("invalid client")
	ErrUnsupportedGrant   = errors.New("unsupported grant type")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenExpired       = errors.New("token expired")
)

var ErrForbidden = errors.New("access forbidden")

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTokenNotFound   = errors.New("token not found")
	ErrSessionNotFound = errors.New("session not found")
)

var (
	ErrStorageFailure = errors.New("storage failure")
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object too large")
	ErrEmptyObject    = errors.New("empty object")
)

// ErrUploadInProgress means another upload holds the same Idempotency-Key.
var ErrUploadInProgress = errors.New("upload in progress")

// IsAuthenticationError reports whether err should surface as a 401.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidClient) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrTokenExpired)
}
