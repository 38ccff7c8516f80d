// Package storage uploads snapshot exports to MinIO or Google Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/tutorhub/apiserver/config"
)

const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

// ObjectStorage defines the object operations shared by both backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// NewFromConfig builds the configured backend.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", BackendMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return client, nil
	case BackendGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
