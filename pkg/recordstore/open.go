package recordstore

import (
	"context"
	"fmt"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/storage"
)

// Open builds the record store selected by cfg.Store, wrapped with blob
// offload when an object storage backend is configured.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Store.Backend {
	case "", "memory":
		store = NewMemory()
	case "redis":
		store, err = DialRedis(ctx, cfg.Redis)
	case "firestore":
		store, err = DialFirestore(ctx, cfg.Firestore)
	default:
		err = fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	blobType := storage.StorageType(cfg.Store.Blobs)
	if blobType == "" || blobType == storage.StorageTypeNone {
		return store, nil
	}
	blobs, err := storage.NewStorage(ctx, blobType, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open blob storage: %w", err)
	}
	log.Info("Record content offloaded to object storage",
		logger.String("backend", cfg.Store.Backend),
		logger.String("blobs", string(blobType)),
	)
	return WithBlobs(store, blobs, cfg.Store.BlobPrefix, log), nil
}
