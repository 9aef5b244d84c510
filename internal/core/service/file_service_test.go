package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

// stubStorage is an in-memory ObjectStorage with an injectable failure.
type stubStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]domain.StoredObject
	uploads int
	fail    error
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: map[string][]byte{}, meta: map[string]domain.StoredObject{}}
}

func (s *stubStorage) Name() string { return "stub" }

func (s *stubStorage) Upload(_ context.Context, obj domain.Object) (*domain.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	s.uploads++
	id := obj.Name
	s.objects[id] = data
	stored := domain.StoredObject{ID: id, URL: "mem://" + id, Name: obj.Name, Size: int64(len(data)), CreatedAt: time.Now()}
	s.meta[id] = stored
	return &stored, nil
}

func (s *stubStorage) List(_ context.Context, prefix string) ([]domain.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	var out []domain.StoredObject
	for id, m := range s.meta {
		if strings.HasPrefix(id, prefix) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStorage) Open(_ context.Context, id string) (io.ReadCloser, *domain.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, nil, s.fail
	}
	data, ok := s.objects[id]
	if !ok {
		return nil, nil, domain.ErrObjectNotFound
	}
	m := s.meta[id]
	return io.NopCloser(bytes.NewReader(data)), &m, nil
}

func (s *stubStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.objects[id]; !ok {
		return domain.ErrObjectNotFound
	}
	delete(s.objects, id)
	delete(s.meta, id)
	return nil
}

// stubIdempotency keeps claims per owner; a nil entry is a pending claim.
type stubIdempotency struct {
	mu       sync.Mutex
	claims   map[string]*domain.StoredObject
	released int
	fail     error
}

func (s *stubIdempotency) Reserve(_ context.Context, owner, key string, _ time.Duration) (*domain.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if s.claims == nil {
		s.claims = map[string]*domain.StoredObject{}
	}
	k := owner + "\x00" + key
	obj, ok := s.claims[k]
	switch {
	case !ok:
		s.claims[k] = nil
		return nil, nil
	case obj == nil:
		return nil, domain.ErrUploadInProgress
	default:
		out := *obj
		return &out, nil
	}
}

func (s *stubIdempotency) Complete(_ context.Context, owner, key string, obj *domain.StoredObject, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *obj
	s.claims[owner+"\x00"+key] = &stored
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, owner, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, owner+"\x00"+key)
	s.released++
	return nil
}

func upload(name, body string) ports.UploadInput {
	return ports.UploadInput{Object: domain.Object{
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
		UploadedBy:  "bob",
	}}
}

func TestFileService_UploadAndOpen(t *testing.T) {
	storage := newStubStorage()
	audit := &recordingAudit{}
	svc := NewFileService(storage, nil, audit, 0, zerolog.Nop())
	ctx := context.Background()

	stored, err := svc.Upload(ctx, upload("a.txt", "hello"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if stored.ID != "a.txt" || stored.Size != 5 {
		t.Fatalf("unexpected stored object %+v", stored)
	}

	rc, obj, err := svc.Open(ctx, stored.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" || obj.Name != "a.txt" {
		t.Fatalf("unexpected content %q / %+v", data, obj)
	}

	if got := audit.actions(); len(got) != 1 || got[0] != domain.AuditFileUploaded {
		t.Fatalf("expected upload audit event, got %v", got)
	}
}

func TestFileService_UploadRejectsEmptyAndOversized(t *testing.T) {
	storage := newStubStorage()
	svc := NewFileService(storage, nil, nil, 4, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Upload(ctx, upload("empty.txt", "")); !errors.Is(err, domain.ErrEmptyObject) {
		t.Fatalf("expected ErrEmptyObject, got %v", err)
	}
	if _, err := svc.Upload(ctx, ports.UploadInput{Object: domain.Object{Name: "nil", Size: 3}}); !errors.Is(err, domain.ErrEmptyObject) {
		t.Fatalf("expected ErrEmptyObject for nil body, got %v", err)
	}
	if _, err := svc.Upload(ctx, upload("big.txt", "hello")); !errors.Is(err, domain.ErrObjectTooLarge) {
		t.Fatalf("expected ErrObjectTooLarge, got %v", err)
	}
	if storage.uploads != 0 {
		t.Fatalf("rejected uploads must not reach storage")
	}
}

func TestFileService_WrapsStorageFailures(t *testing.T) {
	cause := errors.New("bucket unreachable")
	storage := newStubStorage()
	storage.fail = cause
	svc := NewFileService(storage, nil, nil, 0, zerolog.Nop())
	ctx := context.Background()

	_, upErr := svc.Upload(ctx, upload("a.txt", "hello"))
	_, listErr := svc.List(ctx, "")
	_, _, openErr := svc.Open(ctx, "a.txt")
	delErr := svc.Delete(ctx, "a.txt", "admin")

	for name, err := range map[string]error{"upload": upErr, "list": listErr, "open": openErr, "delete": delErr} {
		if !errors.Is(err, domain.ErrStorageFailure) {
			t.Errorf("%s: expected ErrStorageFailure, got %v", name, err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("%s: cause not preserved: %v", name, err)
		}
	}
}

func TestFileService_NotFoundPassesThrough(t *testing.T) {
	svc := NewFileService(newStubStorage(), nil, nil, 0, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Delete(ctx, "missing", "admin"); !errors.Is(err, domain.ErrObjectNotFound) || errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected bare ErrObjectNotFound, got %v", err)
	}
	if _, _, err := svc.Open(ctx, ""); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound for empty id, got %v", err)
	}
}

func TestFileService_DeleteAudits(t *testing.T) {
	storage := newStubStorage()
	audit := &recordingAudit{}
	svc := NewFileService(storage, nil, audit, 0, zerolog.Nop())
	ctx := context.Background()

	stored, _ := svc.Upload(ctx, upload("a.txt", "hello"))
	if err := svc.Delete(ctx, stored.ID, "admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	objects, _ := svc.List(ctx, "")
	if len(objects) != 0 {
		t.Fatalf("expected empty listing, got %v", objects)
	}
	actions := audit.actions()
	if len(actions) != 2 || actions[1] != domain.AuditFileDeleted {
		t.Fatalf("expected delete audit event, got %v", actions)
	}
}

func TestFileService_IdempotentUpload(t *testing.T) {
	storage := newStubStorage()
	idem := &stubIdempotency{}
	svc := NewFileService(storage, idem, nil, 0, zerolog.Nop())
	ctx := context.Background()

	in := upload("a.txt", "hello")
	in.IdempotencyKey = "key-1"
	first, err := svc.Upload(ctx, in)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}

	again := upload("b.txt", "hello")
	again.IdempotencyKey = "key-1"
	second, err := svc.Upload(ctx, again)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected replayed result %q, got %q", first.ID, second.ID)
	}
	if storage.uploads != 1 {
		t.Fatalf("expected a single storage write, got %d", storage.uploads)
	}
}

func TestFileService_IdempotencyKeyScopedToUploader(t *testing.T) {
	storage := newStubStorage()
	svc := NewFileService(storage, &stubIdempotency{}, nil, 0, zerolog.Nop())
	ctx := context.Background()

	alice := upload("alice.txt", "from alice")
	alice.Object.UploadedBy = "alice"
	alice.IdempotencyKey = "k1"
	first, err := svc.Upload(ctx, alice)
	if err != nil {
		t.Fatalf("alice upload: %v", err)
	}

	bob := upload("bob.txt", "from bob")
	bob.IdempotencyKey = "k1"
	second, err := svc.Upload(ctx, bob)
	if err != nil {
		t.Fatalf("bob upload: %v", err)
	}

	if second.ID == first.ID {
		t.Fatalf("bob received alice's object %q", first.ID)
	}
	if storage.uploads != 2 {
		t.Fatalf("expected both files stored, got %d writes", storage.uploads)
	}
}

func TestFileService_IdempotencyKeyInProgress(t *testing.T) {
	storage := newStubStorage()
	idem := &stubIdempotency{}
	svc := NewFileService(storage, idem, nil, 0, zerolog.Nop())
	ctx := context.Background()

	// Another request from bob already holds the key.
	if _, err := idem.Reserve(ctx, "bob", "k1", time.Minute); err != nil {
		t.Fatal(err)
	}

	in := upload("a.txt", "hello")
	in.IdempotencyKey = "k1"
	if _, err := svc.Upload(ctx, in); !errors.Is(err, domain.ErrUploadInProgress) {
		t.Fatalf("expected ErrUploadInProgress, got %v", err)
	}
	if storage.uploads != 0 {
		t.Fatal("a held key must not upload")
	}
}

func TestFileService_IdempotencyConcurrentSameKeyStoresOnce(t *testing.T) {
	storage := newStubStorage()
	svc := NewFileService(storage, &stubIdempotency{}, nil, 0, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := upload("a.txt", "hello")
			in.IdempotencyKey = "k1"
			_, _ = svc.Upload(context.Background(), in)
		}()
	}
	wg.Wait()

	if storage.uploads != 1 {
		t.Fatalf("expected a single storage write, got %d", storage.uploads)
	}
}

func TestFileService_FailedUploadReleasesKey(t *testing.T) {
	storage := newStubStorage()
	storage.fail = errors.New("disk full")
	idem := &stubIdempotency{}
	svc := NewFileService(storage, idem, nil, 0, zerolog.Nop())
	ctx := context.Background()

	in := upload("a.txt", "hello")
	in.IdempotencyKey = "k1"
	if _, err := svc.Upload(ctx, in); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if idem.released != 1 {
		t.Fatalf("expected the claim to be released, released=%d", idem.released)
	}

	storage.fail = nil
	retry := upload("a.txt", "hello")
	retry.IdempotencyKey = "k1"
	if _, err := svc.Upload(ctx, retry); err != nil {
		t.Fatalf("retry after release: %v", err)
	}
	if storage.uploads != 1 {
		t.Fatalf("expected the retry to upload, got %d writes", storage.uploads)
	}
}

func TestFileService_IdempotencyReserveFailureStillUploads(t *testing.T) {
	storage := newStubStorage()
	svc := NewFileService(storage, &stubIdempotency{fail: errors.New("redis down")}, nil, 0, zerolog.Nop())

	in := upload("a.txt", "hello")
	in.IdempotencyKey = "key-1"
	if _, err := svc.Upload(context.Background(), in); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if storage.uploads != 1 {
		t.Fatalf("expected upload despite lookup failure")
	}
}
