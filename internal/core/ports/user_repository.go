package ports

import (
	"context"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdateRole(ctx context.Context, username, role string) error
}

// ClientRepository holds the static OAuth client table.
type ClientRepository interface {
	FindClient(ctx context.Context, clientID string) (*domain.Client, error)
	// Enabled reports whether any client is registered. When false the
	// client check is skipped entirely.
	Enabled() bool
}
