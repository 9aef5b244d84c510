package ports

import (
	"context"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// AuditSink accepts audit events without blocking the request path.
type AuditSink interface {
	Record(event domain.AuditEvent)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
}
