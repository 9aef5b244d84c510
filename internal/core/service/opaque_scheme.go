package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

const (
	// OpaquePrefix identifies tokens minted by OpaqueScheme.
	OpaquePrefix = "upg_"
	// opaqueBytes is the amount of randomness per token (256 bits).
	opaqueBytes = 32
)

// OpaqueScheme mints random tokens and resolves them through a TokenStore.
type OpaqueScheme struct {
	store ports.TokenStore
	now   func() time.Time
}

func NewOpaqueScheme(store ports.TokenStore, now func() time.Time) *OpaqueScheme {
	if now == nil {
		now = time.Now
	}
	return &OpaqueScheme{store: store, now: now}
}

func (s *OpaqueScheme) Name() string { return "opaque" }

// Mint records the token and returns its value. If ctx is cancelled while the
// write is in flight the record is removed again so no orphan stays valid.
func (s *OpaqueScheme) Mint(ctx context.Context, token *domain.Token) (string, error) {
	raw, err := randomValue(opaqueBytes)
	if err != nil {
		return "", err
	}
	value := OpaquePrefix + raw

	record := *token
	record.Value = value
	if err := s.store.Save(ctx, &record); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = s.store.Delete(context.WithoutCancel(ctx), value)
		return "", err
	}
	return value, nil
}

func (s *OpaqueScheme) Resolve(ctx context.Context, value string) (*domain.Token, error) {
	if !validOpaqueFormat(value) {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.store.Get(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	if token.Expired(s.now()) {
		_ = s.store.Delete(ctx, value)
		return nil, domain.ErrTokenExpired
	}
	return token, nil
}

func validOpaqueFormat(value string) bool {
	raw, ok := strings.CutPrefix(value, OpaquePrefix)
	if !ok || raw == "" {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	return err == nil && len(b) == opaqueBytes
}
