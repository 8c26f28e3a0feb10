package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/storage/gcs"
	"github.com/yangshenhuai/skid-homework/pkg/storage/minio"
	"github.com/yangshenhuai/skid-homework/pkg/storage/s3"
)

// StorageType selects an object storage backend
type StorageType string

const (
	StorageTypeNone  StorageType = "none"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
	StorageTypeGCS   StorageType = "gcs"
)

// ErrDisabled is returned by NewStorage for StorageTypeNone
var ErrDisabled = errors.New("object storage disabled")

// Storage holds page content outside the record store
type Storage interface {
	// Store writes the object and returns its key
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete succeeds when the object is already gone
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects under prefix last modified before threshold
	CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error
}

// NewStorage creates the backend named by storageType
func NewStorage(ctx context.Context, storageType StorageType, cfg *config.Config, log logger.Logger) (Storage, error) {
	switch storageType {
	case "", StorageTypeNone:
		return nil, ErrDisabled
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, cfg.S3, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, cfg.Minio, log)
	case StorageTypeGCS:
		return gcs.NewGCSStorage(ctx, cfg.GCS, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
