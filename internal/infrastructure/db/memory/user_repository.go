// Package memory holds process-local implementations of the core ports,
// used in development, in tests and when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// UserRepository is a concurrency-safe in-memory credential store.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.Username] = &u

	out := u
	return &out, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, username, passwordHash string) error {
	return r.update(username, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (r *UserRepository) UpdateRole(_ context.Context, username, role string) error {
	return r.update(username, func(u *domain.User) { u.Role = role })
}

func (r *UserRepository) update(username string, apply func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	next := *u
	apply(&next)
	next.UpdatedAt = time.Now().UTC()
	r.users[username] = &next
	return nil
}
