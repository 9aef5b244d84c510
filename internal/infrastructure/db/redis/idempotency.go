package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// pendingMarker holds a key while its upload runs. Completed keys hold the
// JSON-encoded domain.StoredObject instead.
const pendingMarker = "pending"

// IdempotencyStore claims upload Idempotency-Keys per owner.
// Key format: idem:upload:<escaped owner>:<key>
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Reserve claims the key with SET NX, so concurrent uploads with the same key
// cannot both proceed.
func (s *IdempotencyStore) Reserve(ctx context.Context, owner, key string, ttl time.Duration) (*domain.StoredObject, error) {
	k := s.key(owner, key)
	ok, err := s.client.SetNX(ctx, k, pendingMarker, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return nil, nil
	}

	data, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The claim expired between SETNX and GET.
			return nil, domain.ErrUploadInProgress
		}
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if string(data) == pendingMarker {
		return nil, domain.ErrUploadInProgress
	}

	var obj domain.StoredObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("idempotency decode: %w", err)
	}
	return &obj, nil
}

// Complete overwrites the pending claim with obj.
func (s *IdempotencyStore) Complete(ctx context.Context, owner, key string, obj *domain.StoredObject, ttl time.Duration) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(owner, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, owner, key string) error {
	if err := s.client.Del(ctx, s.key(owner, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

// key escapes owner so it never contains the ':' separator.
func (s *IdempotencyStore) key(owner, key string) string {
	return fmt.Sprintf("idem:upload:%s:%s", url.QueryEscape(owner), key)
}
