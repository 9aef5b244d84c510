package ports

import (
	"context"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// TokenStore is the registry of opaque tokens keyed by token value.
// Save must be a single atomic write: a token is either fully recorded or absent.
type TokenStore interface {
	Save(ctx context.Context, token *domain.Token) error
	// Get returns domain.ErrTokenNotFound when the value is unknown.
	Get(ctx context.Context, value string) (*domain.Token, error)
	Delete(ctx context.Context, value string) error
}

// TokenScheme mints and resolves token values.
type TokenScheme interface {
	Name() string
	Mint(ctx context.Context, token *domain.Token) (string, error)
	// Resolve returns domain.ErrUnauthorized or domain.ErrTokenExpired on failure.
	Resolve(ctx context.Context, value string) (*domain.Token, error)
}

// SessionStore keeps server-side sessions with a sliding idle timeout.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	// Touch returns the session and extends its idle deadline, or
	// domain.ErrSessionNotFound when it is unknown or expired.
	Touch(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}
