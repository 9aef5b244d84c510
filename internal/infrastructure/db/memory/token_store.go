package memory

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// TokenStore is a hash-indexed token registry guarded by an RWMutex.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domain.Token
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domain.Token)}
}

func (s *TokenStore) Save(ctx context.Context, token *domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.tokens[token.Value] = *token
	s.mu.Unlock()
	return nil
}

func (s *TokenStore) Get(_ context.Context, value string) (*domain.Token, error) {
	s.mu.RLock()
	t, ok := s.tokens[value]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return &t, nil
}

func (s *TokenStore) Delete(_ context.Context, value string) error {
	s.mu.Lock()
	delete(s.tokens, value)
	s.mu.Unlock()
	return nil
}

// PurgeExpired drops every token expired at now and returns how many were removed.
func (s *TokenStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for v, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, v)
			n++
		}
	}
	return n
}

// Len returns the number of tokens currently held.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
