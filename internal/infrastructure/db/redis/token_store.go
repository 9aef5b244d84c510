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

// TokenStore keeps opaque tokens in Redis.
// Key format: token:<sha256(value)>; the key expires with the token.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// Save writes the record with a single SET ... EX.
func (s *TokenStore) Save(ctx context.Context, token *domain.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, s.key(token.Value), data, ttl).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, value string) (*domain.Token, error) {
	data, err := s.client.Get(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	var t domain.Token
	if err := json.Unmarshal(data, &t); err != nil {
		s.client.Del(ctx, s.key(value))
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	t.Value = value
	return &t, nil
}

func (s *TokenStore) Delete(ctx context.Context, value string) error {
	return s.client.Del(ctx, s.key(value)).Err()
}

func (s *TokenStore) key(value string) string {
	return "token:" + digest(value)
}
