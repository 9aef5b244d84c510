package mongo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

const tokensCollection = "access_tokens"

// TokenRepository is a durable ports.TokenStore. Documents are keyed by the
// sha256 of the token value and reaped by a TTL index on expires_at.
type TokenRepository struct {
	coll *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{coll: db.Collection(tokensCollection)}
}

type mongoToken struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Username  string    `bson:"username"`
	Role      string    `bson:"role"`
	ClientID  string    `bson:"client_id,omitempty"`
	IssuedAt  time.Time `bson:"issued_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Save inserts the token in a single document write.
func (r *TokenRepository) Save(ctx context.Context, token *domain.Token) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, mongoToken{
		ID:        tokenKey(token.Value),
		UserID:    token.UserID,
		Username:  token.Username,
		Role:      token.Role,
		ClientID:  token.ClientID,
		IssuedAt:  token.IssuedAt.UTC(),
		ExpiresAt: token.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Get(ctx context.Context, value string) (*domain.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mt mongoToken
	if err := r.coll.FindOne(ctx, bson.M{"_id": tokenKey(value)}).Decode(&mt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	return &domain.Token{
		Value:     value,
		UserID:    mt.UserID,
		Username:  mt.Username,
		Role:      mt.Role,
		ClientID:  mt.ClientID,
		IssuedAt:  mt.IssuedAt,
		ExpiresAt: mt.ExpiresAt,
	}, nil
}

func (r *TokenRepository) Delete(ctx context.Context, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": tokenKey(value)})
	return err
}

// EnsureIndexes lets MongoDB remove tokens once expires_at has passed.
func (r *TokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func tokenKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
