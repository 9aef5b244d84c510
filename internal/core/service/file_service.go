package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

const (
	defaultMaxUploadBytes = 10 << 20
	idempotencyTTL        = 24 * time.Hour

	// idempotencyClaimTTL bounds how long a crashed upload blocks its key.
	idempotencyClaimTTL = 5 * time.Minute
)

type fileService struct {
	storage  ports.ObjectStorage
	idem     ports.IdempotencyStore
	audit    ports.AuditSink
	maxBytes int64
	log      zerolog.Logger
}

// NewFileService returns a FileService over the given backend. idem and audit may be nil.
func NewFileService(
	storage ports.ObjectStorage,
	idem ports.IdempotencyStore,
	audit ports.AuditSink,
	maxBytes int64,
	log zerolog.Logger,
) ports.FileService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	if audit == nil {
		audit = nopAudit{}
	}
	return &fileService{
		storage:  storage,
		idem:     idem,
		audit:    audit,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Upload stores a single file. A repeated Idempotency-Key from the same user
// returns the first result.
func (s *fileService) Upload(ctx context.Context, in ports.UploadInput) (*domain.StoredObject, error) {
	obj := in.Object
	if obj.Size <= 0 || obj.Body == nil {
		return nil, domain.ErrEmptyObject
	}
	if obj.Size > s.maxBytes {
		return nil, domain.ErrObjectTooLarge
	}

	claimed := false
	if in.IdempotencyKey != "" && s.idem != nil {
		prev, err := s.idem.Reserve(ctx, obj.UploadedBy, in.IdempotencyKey, idempotencyClaimTTL)
		switch {
		case errors.Is(err, domain.ErrUploadInProgress):
			return nil, err
		case err != nil:
			s.log.Warn().Err(err).Str("key", in.IdempotencyKey).Msg("idempotency reserve failed, uploading anyway")
		case prev != nil:
			s.log.Debug().Str("key", in.IdempotencyKey).Str("id", prev.ID).Msg("duplicate upload skipped")
			return prev, nil
		default:
			claimed = true
		}
	}

	stored, err := s.storage.Upload(ctx, obj)
	if err != nil {
		if claimed {
			if rerr := s.idem.Release(context.WithoutCancel(ctx), obj.UploadedBy, in.IdempotencyKey); rerr != nil {
				s.log.Warn().Err(rerr).Str("key", in.IdempotencyKey).Msg("failed to release idempotency key")
			}
		}
		return nil, fmt.Errorf("%w: upload: %w", domain.ErrStorageFailure, err)
	}

	if claimed {
		if err := s.idem.Complete(ctx, obj.UploadedBy, in.IdempotencyKey, stored, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", in.IdempotencyKey).Msg("failed to set idempotency key")
		}
	}

	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditFileUploaded,
		Username:   obj.UploadedBy,
		ResourceID: stored.ID,
		Status:     "success",
		OccurredAt: time.Now().UTC(),
	})
	s.log.Info().
		Str("id", stored.ID).
		Str("backend", s.storage.Name()).
		Int64("size", stored.Size).
		Str("username", obj.UploadedBy).
		Msg("file uploaded")

	return stored, nil
}

func (s *fileService) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	objects, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", domain.ErrStorageFailure, err)
	}
	return objects, nil
}

func (s *fileService) Open(ctx context.Context, id string) (io.ReadCloser, *domain.StoredObject, error) {
	if id == "" {
		return nil, nil, domain.ErrObjectNotFound
	}
	rc, obj, err := s.storage.Open(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: open: %w", domain.ErrStorageFailure, err)
	}
	return rc, obj, nil
}

func (s *fileService) Delete(ctx context.Context, id, deletedBy string) error {
	if id == "" {
		return domain.ErrObjectNotFound
	}
	if err := s.storage.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete: %w", domain.ErrStorageFailure, err)
	}

	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditFileDeleted,
		Username:   deletedBy,
		ResourceID: id,
		Status:     "success",
		OccurredAt: time.Now().UTC(),
	})
	s.log.Info().Str("id", id).Str("username", deletedBy).Msg("file deleted")
	return nil
}
