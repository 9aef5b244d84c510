package ports

import (
	"context"
	"io"
	"time"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

// ObjectStorage is the narrow interface to the storage backend.
type ObjectStorage interface {
	Name() string
	Upload(ctx context.Context, obj domain.Object) (*domain.StoredObject, error)
	List(ctx context.Context, prefix string) ([]domain.StoredObject, error)
	// Delete returns domain.ErrObjectNotFound when id is unknown.
	Delete(ctx context.Context, id string) error
	// Open returns domain.ErrObjectNotFound when id is unknown.
	Open(ctx context.Context, id string) (io.ReadCloser, *domain.StoredObject, error)
}

// IdempotencyStore claims upload Idempotency-Keys. Keys are scoped to the
// owner, so two callers sending the same header value never share a result.
type IdempotencyStore interface {
	// Reserve claims (owner, key) for ttl. It returns nil, nil when the caller
	// now holds the claim, the recorded object when an earlier upload
	// completed, or domain.ErrUploadInProgress while another upload holds it.
	Reserve(ctx context.Context, owner, key string, ttl time.Duration) (*domain.StoredObject, error)
	// Complete replaces the claim with the uploaded object.
	Complete(ctx context.Context, owner, key string, obj *domain.StoredObject, ttl time.Duration) error
	// Release drops a claim whose upload failed.
	Release(ctx context.Context, owner, key string) error
}

// UploadInput is what the transport layer hands the file service.
type UploadInput struct {
	Object         domain.Object
	IdempotencyKey string
}

// FileService runs file operations. Callers authorize before invoking it.
type FileService interface {
	Upload(ctx context.Context, in UploadInput) (*domain.StoredObject, error)
	List(ctx context.Context, prefix string) ([]domain.StoredObject, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *domain.StoredObject, error)
	Delete(ctx context.Context, id, deletedBy string) error
}
