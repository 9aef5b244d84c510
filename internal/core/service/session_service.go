package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

const sessionIDBytes = 32

// SessionService binds identities to server-side sessions.
type SessionService struct {
	store ports.SessionStore
	now   func() time.Time
}

func NewSessionService(store ports.SessionStore, now func() time.Time) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{store: store, now: now}
}

// CreateSession stores the identity and returns the opaque cookie value.
func (s *SessionService) CreateSession(ctx context.Context, identity domain.Identity) (string, error) {
	id, err := randomValue(sessionIDBytes)
	if err != nil {
		return "", err
	}

	session := &domain.Session{ID: id, Identity: identity, CreatedAt: s.now().UTC()}
	if err := s.store.Create(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = s.store.Delete(context.WithoutCancel(ctx), id)
		return "", err
	}
	return id, nil
}

// ResolveSession returns the bound identity, sliding the idle deadline.
func (s *SessionService) ResolveSession(ctx context.Context, sessionID string) (domain.Identity, error) {
	if sessionID == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	session, err := s.store.Touch(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Identity{}, domain.ErrUnauthorized
		}
		return domain.Identity{}, fmt.Errorf("resolve session: %w", err)
	}
	return session.Identity, nil
}

func (s *SessionService) DestroySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.Delete(ctx, sessionID)
}
