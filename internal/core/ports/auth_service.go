package ports

import (
	"context"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// TokenRequest carries the inputs of a token grant.
type TokenRequest struct {
	GrantType    string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// AuthService issues and validates access tokens and manages credentials.
type AuthService interface {
	IssueToken(ctx context.Context, req TokenRequest) (*domain.Token, error)
	Validate(ctx context.Context, tokenValue string) (domain.Identity, error)
	Authenticate(ctx context.Context, username, password string) (domain.Identity, error)
	CreateUser(ctx context.Context, username, password, role string) (*domain.User, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	SetRole(ctx context.Context, username, role string) error
}

// SessionService binds identities to cookie sessions.
type SessionService interface {
	CreateSession(ctx context.Context, identity domain.Identity) (string, error)
	ResolveSession(ctx context.Context, sessionID string) (domain.Identity, error)
	DestroySession(ctx context.Context, sessionID string) error
}
