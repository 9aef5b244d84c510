package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// SessionStore keeps sessions in Redis under session:<sha256(id)>.
// Every Touch resets the key TTL to the idle timeout.
type SessionStore struct {
	client      *redis.Client
	idleTimeout time.Duration
}

func NewSessionStore(client *redis.Client, idleTimeout time.Duration) *SessionStore {
	return &SessionStore{client: client, idleTimeout: idleTimeout}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, s.idleTimeout).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Touch(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.GetEx(ctx, s.key(id), s.idleTimeout).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("touch session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session.ID = id
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) key(id string) string {
	return "session:" + digest(id)
}
