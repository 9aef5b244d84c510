package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeS3 is a bucket held in memory. fail, when set, is returned by every call.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	deletes int
	fail    error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string]fakeObject{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = fakeObject{
		data:        data,
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		modified:    time.Now().UTC(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.data))),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.deletes++
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

type fakePresigner struct {
	ttl time.Duration
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	p.ttl = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://bucket.test/" + aws.ToString(in.Key) + "?X-Amz-Signature=sig",
		Method: "GET",
	}, nil
}

func newTestS3(fake *fakeS3, presign *fakePresigner) *S3Storage {
	return newS3Storage(fake, presign, S3Config{Bucket: "uploads", Prefix: "web-service/"})
}

func TestS3Storage_UploadUsesPrefixAndPresigns(t *testing.T) {
	fake, presign := newFakeS3(), &fakePresigner{}
	s := newTestS3(fake, presign)

	stored, err := s.Upload(context.Background(), domain.Object{
		Name:        "photo.png",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("\x89PNG"),
		UploadedBy:  "bob",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stored.ID, ".png"))
	obj, ok := fake.objects["web-service/"+stored.ID]
	require.True(t, ok, "object stored under prefix")
	assert.Equal(t, "image/png", obj.contentType)
	assert.Equal(t, "photo.png", obj.metadata[metaOriginalName])
	assert.Equal(t, "bob", obj.metadata[metaUploadedBy])

	assert.Contains(t, stored.URL, "web-service/"+stored.ID)
	assert.Equal(t, defaultPresignTTL, presign.ttl)
}

func TestS3Storage_ListStripsPrefix(t *testing.T) {
	fake := newFakeS3()
	s := newTestS3(fake, &fakePresigner{})
	ctx := context.Background()

	stored, err := s.Upload(ctx, domain.Object{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)
	fake.objects["web-service/not-an-id"] = fakeObject{data: []byte("x")}
	fake.objects["elsewhere/"+stored.ID] = fakeObject{data: []byte("x")}

	objects, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, stored.ID, objects[0].ID)
	assert.Equal(t, int64(1), objects[0].Size)
}

func TestS3Storage_OpenAndDelete(t *testing.T) {
	fake := newFakeS3()
	s := newTestS3(fake, &fakePresigner{})
	ctx := context.Background()

	stored, err := s.Upload(ctx, domain.Object{Name: "a.txt", ContentType: "text/plain", Size: 2, Body: strings.NewReader("hi")})
	require.NoError(t, err)

	rc, obj, err := s.Open(ctx, stored.ID)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hi", string(data))
	assert.Equal(t, "a.txt", obj.Name)

	require.NoError(t, s.Delete(ctx, stored.ID))
	assert.ErrorIs(t, s.Delete(ctx, stored.ID), domain.ErrObjectNotFound)
	assert.Equal(t, 1, fake.deletes, "missing objects are not deleted again")

	_, _, err = s.Open(ctx, stored.ID)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestS3Storage_BackendErrorsAreReturned(t *testing.T) {
	fake := newFakeS3()
	s := newTestS3(fake, &fakePresigner{})
	cause := errors.New("503 slow down")
	fake.fail = cause
	ctx := context.Background()

	_, err := s.Upload(ctx, domain.Object{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, cause)

	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, cause)

	id := newObjectID("a.txt")
	err = s.Delete(ctx, id)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{})
	assert.Error(t, err)
}
