// Package blob stores uploaded document payloads.
//
// Two backends implement Store: FilesystemStore keeps payloads in a local
// uploads directory, S3Store keeps them in an S3-compatible bucket (AWS or
// MinIO). Keys are opaque flat names generated at upload time.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/folio/pkg/config"
	"github.com/platinummonkey/folio/pkg/observability"
)

// ErrNotFound is returned when a key has no stored payload
var ErrNotFound = errors.New("blob not found")

// Store holds document payloads by key
type Store interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	HealthCheck(ctx context.Context) error
}

// New builds the backend selected by cfg.Type
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "filesystem":
		return NewFilesystemStore(cfg.FilesystemRoot)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// NewKey returns a fresh key that keeps the extension of originalName
func NewKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return uuid.NewString() + ext
}

func validateKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

// Instrumented counts every operation of the wrapped store
type Instrumented struct {
	Store
	metrics *observability.Metrics
}

// WithMetrics wraps store so each call is counted by operation and status
func WithMetrics(store Store, metrics *observability.Metrics) Store {
	if metrics == nil {
		return store
	}
	return &Instrumented{Store: store, metrics: metrics}
}

func (i *Instrumented) observe(op string, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	i.metrics.BlobOperationsTotal.WithLabelValues(op, status).Inc()
}

func (i *Instrumented) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	err := i.Store.Put(ctx, key, content, contentType)
	i.observe("put", err)
	return err
}

func (i *Instrumented) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := i.Store.Get(ctx, key)
	i.observe("get", err)
	return rc, err
}

func (i *Instrumented) Delete(ctx context.Context, key string) error {
	err := i.Store.Delete(ctx, key)
	i.observe("delete", err)
	return err
}
