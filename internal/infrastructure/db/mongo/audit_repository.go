package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

const auditCollection = "audit_events"

// AuditRepository persists audit events to the audit_events collection.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

func (r *AuditRepository) Insert(ctx context.Context, event *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"action":      event.Action,
		"username":    event.Username,
		"status":      event.Status,
		"occurred_at": event.OccurredAt.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if event.ResourceID != "" {
		doc["resource_id"] = event.ResourceID
	}
	if event.Reason != "" {
		doc["reason"] = event.Reason
	}

	_, err := r.coll.InsertOne(ctx, doc)
	return err
}
