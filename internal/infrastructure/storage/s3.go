package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

const (
	defaultPresignTTL = 15 * time.Minute

	metaOriginalName = "original-name"
	metaUploadedBy   = "uploaded-by"
)

// S3Config configures the S3 backend. Endpoint and UsePathStyle target MinIO
// and other S3-compatible stores.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
	PresignTTL   time.Duration
	CreateBucket bool
}

// s3API is the subset of *s3.Client used by S3Storage.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage stores objects in a bucket under a key prefix. Object URLs are
// presigned GET requests.
type S3Storage struct {
	client     s3API
	presign    presigner
	bucket     string
	prefix     string
	presignTTL time.Duration
}

// NewS3Storage builds the SDK client from cfg. Static credentials are used
// when both keys are set, the default credential chain otherwise.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 storage: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if cfg.CreateBucket {
		if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
			return nil, err
		}
	}

	return newS3Storage(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Storage(client s3API, presign presigner, cfg S3Config) *S3Storage {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &S3Storage{
		client:     client,
		presign:    presign,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		presignTTL: ttl,
	}
}

func (s *S3Storage) Name() string { return "s3" }

func (s *S3Storage) Upload(ctx context.Context, obj domain.Object) (*domain.StoredObject, error) {
	id := newObjectID(obj.Name)
	key := s.prefix + id

	ctx, span := tracer.Start(ctx, "S3.PutObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
			attribute.String("content.type", obj.ContentType),
			attribute.Int64("content.size", obj.Size),
		),
	)
	defer span.End()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   obj.Body,
		Metadata: map[string]string{
			metaOriginalName: obj.Name,
			metaUploadedBy:   obj.UploadedBy,
		},
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, s.fail(span, fmt.Errorf("put object: %w", err))
	}

	url, err := s.url(ctx, key)
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetStatus(codes.Ok, "object uploaded")
	return &domain.StoredObject{
		ID:          id,
		URL:         url,
		Name:        obj.Name,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	ctx, span := tracer.Start(ctx, "S3.ListObjectsV2",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.prefix", s.prefix+prefix),
		),
	)
	defer span.End()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})

	var objects []domain.StoredObject
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("list objects: %w", err))
		}
		for _, item := range page.Contents {
			key := aws.ToString(item.Key)
			id := strings.TrimPrefix(key, s.prefix)
			if !validID(id) {
				continue
			}
			url, err := s.url(ctx, key)
			if err != nil {
				return nil, s.fail(span, err)
			}
			objects = append(objects, domain.StoredObject{
				ID:        id,
				URL:       url,
				Size:      aws.ToInt64(item.Size),
				CreatedAt: aws.ToTime(item.LastModified),
			})
		}
	}

	span.SetAttributes(attribute.Int("s3.count", len(objects)))
	return objects, nil
}

func (s *S3Storage) Open(ctx context.Context, id string) (io.ReadCloser, *domain.StoredObject, error) {
	if !validID(id) {
		return nil, nil, domain.ErrObjectNotFound
	}
	key := s.prefix + id

	ctx, span := tracer.Start(ctx, "S3.GetObject",
		trace.WithAttributes(attribute.String("s3.bucket", s.bucket), attribute.String("s3.key", key)),
	)
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, domain.ErrObjectNotFound
		}
		return nil, nil, s.fail(span, fmt.Errorf("get object: %w", err))
	}

	url, err := s.url(ctx, key)
	if err != nil {
		out.Body.Close()
		return nil, nil, s.fail(span, err)
	}

	return out.Body, &domain.StoredObject{
		ID:          id,
		URL:         url,
		Name:        out.Metadata[metaOriginalName],
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		CreatedAt:   aws.ToTime(out.LastModified),
	}, nil
}

// Delete checks existence first because S3 deletes are idempotent.
func (s *S3Storage) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrObjectNotFound
	}
	key := s.prefix + id

	ctx, span := tracer.Start(ctx, "S3.DeleteObject",
		trace.WithAttributes(attribute.String("s3.bucket", s.bucket), attribute.String("s3.key", key)),
	)
	defer span.End()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrObjectNotFound
		}
		return s.fail(span, fmt.Errorf("head object: %w", err))
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return s.fail(span, fmt.Errorf("delete object: %w", err))
	}
	return nil
}

func (s *S3Storage) url(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return req.URL, nil
}

func (s *S3Storage) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var exists *types.BucketAlreadyExists
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &exists) || errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
