package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	cfg "github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

type GCSStorage struct {
	client     *storage.Client
	bucketName string
	logger     logger.Logger
}

// Store implements Storage.Store
func (g *GCSStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	w := g.client.Bucket(g.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		g.logger.Error("Failed to write object to GCS",
			logger.String("bucket", g.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	if err := w.Close(); err != nil {
		g.logger.Error("Failed to finalize object in GCS",
			logger.String("bucket", g.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	return key, nil
}

// Get implements Storage.Get
func (g *GCSStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		g.logger.Error("Failed to get object from GCS",
			logger.String("bucket", g.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return r, nil
}

// Delete implements Storage.Delete
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucketName).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		g.logger.Error("Failed to delete object from GCS",
			logger.String("bucket", g.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// CleanupBefore implements Storage.CleanupBefore
func (g *GCSStorage) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
	it := g.client.Bucket(g.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		if !attrs.Updated.Before(threshold) {
			continue
		}
		if err := g.Delete(ctx, attrs.Name); err != nil {
			continue
		}
	}
}

func NewGCSStorage(ctx context.Context, c cfg.GCSConfig, log logger.Logger) (*GCSStorage, error) {
	if c.BucketName == "" {
		return nil, fmt.Errorf("gcs bucketName must be provided")
	}
	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{
		client:     client,
		bucketName: c.BucketName,
		logger:     log.Named("gcs"),
	}, nil
}
