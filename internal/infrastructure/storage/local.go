package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

const metaSuffix = ".meta.json"

// LocalStorage keeps files under a root directory. Each object is stored as
// <id> with a sidecar <id>.meta.json describing it.
type LocalStorage struct {
	root    string
	baseURL string
}

type localMeta struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewLocalStorage creates root if needed. baseURL prefixes the download URL
// of every object ("<baseURL>/files/<id>").
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Name() string { return "local" }

// Upload writes to a temporary file and renames it into place, so a failed or
// cancelled upload leaves nothing listable behind.
func (s *LocalStorage) Upload(ctx context.Context, obj domain.Object) (*domain.StoredObject, error) {
	_, span := tracer.Start(ctx, "Local.Upload",
		trace.WithAttributes(attribute.String("content.type", obj.ContentType)),
	)
	defer span.End()

	id := newObjectID(obj.Name)
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: obj.Body})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("write object: %w", err))
	}

	meta := localMeta{
		Name:        obj.Name,
		ContentType: obj.ContentType,
		Size:        n,
		UploadedBy:  obj.UploadedBy,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("marshal metadata: %w", err))
	}
	if err := os.WriteFile(s.metaPath(id), data, 0o644); err != nil {
		return nil, s.fail(span, fmt.Errorf("write metadata: %w", err))
	}
	if err := os.Rename(tmpName, s.dataPath(id)); err != nil {
		_ = os.Remove(s.metaPath(id))
		return nil, s.fail(span, fmt.Errorf("commit object: %w", err))
	}

	span.SetAttributes(attribute.String("object.id", id), attribute.Int64("content.size", n))
	span.SetStatus(codes.Ok, "object stored")
	return s.stored(id, meta), nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	_, span := tracer.Start(ctx, "Local.List", trace.WithAttributes(attribute.String("prefix", prefix)))
	defer span.End()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("read storage directory: %w", err))
	}

	objects := make([]domain.StoredObject, 0, len(entries))
	for _, entry := range entries {
		id := entry.Name()
		if entry.IsDir() || !validID(id) || !strings.HasPrefix(id, prefix) {
			continue
		}
		meta, err := s.readMeta(id)
		if err != nil {
			if errors.Is(err, domain.ErrObjectNotFound) {
				continue
			}
			return nil, s.fail(span, err)
		}
		objects = append(objects, *s.stored(id, meta))
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].CreatedAt.Before(objects[j].CreatedAt)
	})
	return objects, nil
}

func (s *LocalStorage) Open(ctx context.Context, id string) (io.ReadCloser, *domain.StoredObject, error) {
	_, span := tracer.Start(ctx, "Local.Open", trace.WithAttributes(attribute.String("object.id", id)))
	defer span.End()

	if !validID(id) {
		return nil, nil, domain.ErrObjectNotFound
	}
	meta, err := s.readMeta(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.dataPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.ErrObjectNotFound
		}
		return nil, nil, s.fail(span, fmt.Errorf("open object: %w", err))
	}
	return f, s.stored(id, meta), nil
}

func (s *LocalStorage) Delete(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "Local.Delete", trace.WithAttributes(attribute.String("object.id", id)))
	defer span.End()

	if !validID(id) {
		return domain.ErrObjectNotFound
	}
	if err := os.Remove(s.dataPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrObjectNotFound
		}
		return s.fail(span, fmt.Errorf("delete object: %w", err))
	}
	if err := os.Remove(s.metaPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s.fail(span, fmt.Errorf("delete metadata: %w", err))
	}
	return nil
}

func (s *LocalStorage) readMeta(id string) (localMeta, error) {
	var meta localMeta
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return meta, domain.ErrObjectNotFound
		}
		return meta, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

func (s *LocalStorage) stored(id string, meta localMeta) *domain.StoredObject {
	return &domain.StoredObject{
		ID:          id,
		URL:         s.baseURL + "/files/" + id,
		Name:        meta.Name,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		CreatedAt:   meta.CreatedAt,
	}
}

func (s *LocalStorage) dataPath(id string) string { return filepath.Join(s.root, id) }
func (s *LocalStorage) metaPath(id string) string { return filepath.Join(s.root, id+metaSuffix) }

func (s *LocalStorage) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
