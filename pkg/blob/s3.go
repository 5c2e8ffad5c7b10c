package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/platinummonkey/folio/pkg/blob")

// S3Options configures an S3Store
type S3Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Store keeps payloads in an S3 bucket
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a client and makes sure the bucket exists
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		// Static credentials, e.g. MinIO
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	if err := createBucketIfNotExists(ctx, client, opts.Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

func (s *S3Store) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "S3."+op,
		trace.WithAttributes(
			attribute.String("s3.operation", op),
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
}

// Put uploads content under key
func (s *S3Store) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	ctx, span := s.startSpan(ctx, "PutObject", key)
	defer span.End()

	if err := validateKey(key); err != nil {
		return err
	}

	// Unseekable bodies cannot be signed, so they are buffered.
	body, ok := content.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(content)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to read content: %w", err)
		}
		body = bytes.NewReader(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to s3")
		return fmt.Errorf("failed to upload to s3: %w", err)
	}

	span.SetStatus(codes.Ok, "object uploaded")
	return nil
}

// Get streams the payload for key
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, span := s.startSpan(ctx, "GetObject", key)
	defer span.End()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get object from s3")
		return nil, fmt.Errorf("failed to get object from s3: %w", err)
	}

	if result.ContentLength != nil {
		span.SetAttributes(attribute.Int64("content.size", *result.ContentLength))
	}
	span.SetStatus(codes.Ok, "object retrieved")
	return result.Body, nil
}

// Delete removes the object. S3 deletes are idempotent.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "DeleteObject", key)
	defer span.End()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// HealthCheck verifies the bucket is reachable
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil && !isBucketAlreadyExistsError(err) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func isBucketAlreadyExistsError(err error) bool {
	var exists *types.BucketAlreadyExists
	var owned *types.BucketAlreadyOwnedByYou
	return errors.As(err, &exists) || errors.As(err, &owned)
}
