package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

const defaultMaxSessions = 100_000

// SessionStore keeps sessions in an expiring LRU; every Touch re-adds the
// entry, which restarts its idle timer.
type SessionStore struct {
	// mu serialises Touch against Delete so a logout cannot be undone by a
	// concurrent re-add.
	mu    sync.Mutex
	cache *expirable.LRU[string, domain.Session]
}

func NewSessionStore(idleTimeout time.Duration, maxSessions int) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &SessionStore{
		cache: expirable.NewLRU[string, domain.Session](maxSessions, nil, idleTimeout),
	}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Add(session.ID, *session)
	return nil
}

func (s *SessionStore) Touch(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.cache.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.cache.Add(id, session)
	return &session, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	s.cache.Remove(id)
	s.mu.Unlock()
	return nil
}
