package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// JWTScheme mints stateless HS256 tokens. Nothing is stored server-side.
type JWTScheme struct {
	secret []byte
	now    func() time.Time
}

type accessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTScheme(secret string, now func() time.Time) (*JWTScheme, error) {
	if secret == "" {
		return nil, errors.New("jwt scheme: secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &JWTScheme{secret: []byte(secret), now: now}, nil
}

func (s *JWTScheme) Name() string { return "jwt" }

func (s *JWTScheme) Mint(_ context.Context, token *domain.Token) (string, error) {
	jti, err := randomValue(16)
	if err != nil {
		return "", err
	}

	claims := accessClaims{
		Username: token.Username,
		Role:     token.Role,
		ClientID: token.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   token.UserID,
			IssuedAt:  jwt.NewNumericDate(token.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(token.ExpiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *JWTScheme) Resolve(_ context.Context, value string) (*domain.Token, error) {
	if value == "" {
		return nil, domain.ErrUnauthorized
	}

	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrUnauthorized
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, domain.ErrUnauthorized
	}

	token := &domain.Token{
		Value:    value,
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		ClientID: claims.ClientID,
	}
	if claims.IssuedAt != nil {
		token.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token, nil
}
