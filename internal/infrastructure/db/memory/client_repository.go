package memory

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// ClientRepository is the static OAuth client table seeded at startup.
type ClientRepository struct {
	clients map[string]*domain.Client
}

// NewClientRepository hashes each id→secret pair and registers it for the
// password grant. An empty map yields a disabled registry.
func NewClientRepository(secrets map[string]string, cost int) (*ClientRepository, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	clients := make(map[string]*domain.Client, len(secrets))
	for id, secret := range secrets {
		if id == "" || secret == "" {
			return nil, fmt.Errorf("oauth client %q: id and secret are required", id)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
		if err != nil {
			return nil, fmt.Errorf("hash client secret: %w", err)
		}
		clients[id] = &domain.Client{
			ID:            id,
			SecretHash:    string(hash),
			AllowedGrants: []string{domain.GrantPassword},
		}
	}
	return &ClientRepository{clients: clients}, nil
}

func (r *ClientRepository) FindClient(_ context.Context, clientID string) (*domain.Client, error) {
	c, ok := r.clients[clientID]
	if !ok {
		return nil, domain.ErrInvalidClient
	}
	out := *c
	return &out, nil
}

func (r *ClientRepository) Enabled() bool { return len(r.clients) > 0 }
