package recordstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/storage"
)

// BlobOffload moves page content into object storage and keeps only the
// object key in the wrapped record store.
type BlobOffload struct {
	Store
	blobs  storage.Storage
	prefix string
	logger logger.Logger
}

func WithBlobs(inner Store, blobs storage.Storage, prefix string, log logger.Logger) *BlobOffload {
	return &BlobOffload{
		Store:  inner,
		blobs:  blobs,
		prefix: prefix,
		logger: log.Named("blobs"),
	}
}

func (b *BlobOffload) objectKey(id string) string {
	return path.Join(b.prefix, id)
}

func (b *BlobOffload) offload(ctx context.Context, rec *Record) error {
	if len(rec.Blob) == 0 {
		return nil
	}
	key, err := b.blobs.Store(ctx, bytes.NewReader(rec.Blob), b.objectKey(rec.ID))
	if err != nil {
		return err
	}
	rec.Blob = nil
	rec.BlobKey = key
	return nil
}

func (b *BlobOffload) Create(ctx context.Context, rec Record) error {
	if err := b.offload(ctx, &rec); err != nil {
		return err
	}
	return b.Store.Create(ctx, rec)
}

func (b *BlobOffload) BulkCreate(ctx context.Context, recs []Record) error {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		if err := b.offload(ctx, &rec); err != nil {
			return err
		}
		out[i] = rec
	}
	return b.Store.BulkCreate(ctx, out)
}

func (b *BlobOffload) Update(ctx context.Context, id string, patch Patch) error {
	if patch.Blob != nil {
		key, err := b.blobs.Store(ctx, bytes.NewReader(patch.Blob), b.objectKey(id))
		if err != nil {
			return err
		}
		patch.Blob = nil
		patch.BlobKey = &key
	}
	return b.Store.Update(ctx, id, patch)
}

func (b *BlobOffload) Delete(ctx context.Context, id string) error {
	if err := b.Store.Delete(ctx, id); err != nil {
		return err
	}
	return b.blobs.Delete(ctx, b.objectKey(id))
}

func (b *BlobOffload) Clear(ctx context.Context) error {
	if err := b.Store.Clear(ctx); err != nil {
		return err
	}
	return b.blobs.CleanupBefore(ctx, b.prefix, time.Now().Add(time.Minute))
}

// List loads the content of every record back from object storage.
// A record whose object is missing is returned without content.
func (b *BlobOffload) List(ctx context.Context) ([]Record, error) {
	recs, err := b.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].BlobKey == "" {
			continue
		}
		data, err := b.read(ctx, recs[i].BlobKey)
		if err != nil {
			b.logger.Warn("Failed to load record content",
				logger.String("id", recs[i].ID),
				logger.String("key", recs[i].BlobKey),
				logger.Error(err),
			)
			continue
		}
		recs[i].Blob = data
	}
	return recs, nil
}

func (b *BlobOffload) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := b.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}
