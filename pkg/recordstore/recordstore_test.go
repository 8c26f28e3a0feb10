package recordstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

func record(id string, createdAt int64) Record {
	return Record{
		ID:        id,
		Blob:      []byte("content-" + id),
		FileName:  id + ".png",
		MimeType:  "image/png",
		Source:    models.SourceUpload,
		Status:    models.FileStatusPending,
		CreatedAt: createdAt,
	}
}

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

// runContract exercises the behaviour every backend shares
func runContract(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.BulkCreate(ctx, []Record{record("b", 20), record("a", 10)}))
	require.NoError(t, s.Create(ctx, record("c", 30)))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(recs))
	assert.Equal(t, []byte("content-a"), recs[0].Blob)

	status := models.FileStatusSuccess
	name := "renamed.png"
	sol := models.Solution{
		ImageURL:       "blob:x",
		Status:         models.SolutionSuccess,
		StreamedOutput: "never stored",
		Problems:       []models.ProblemSolution{{Problem: "p", Answer: "a", Steps: []models.ExplanationStep{}}},
		AiSourceID:     "src",
	}
	require.NoError(t, s.Update(ctx, "a", Patch{Status: &status, FileName: &name, Solution: &sol}))
	err = s.Update(ctx, "missing", Patch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusSuccess, recs[0].Status)
	assert.Equal(t, "renamed.png", recs[0].FileName)
	require.NotNil(t, recs[0].Solution)
	assert.Equal(t, "src", recs[0].Solution.AiSourceID)
	assert.Empty(t, recs[0].Solution.StreamedOutput)

	require.NoError(t, s.ClearSolutions(ctx))
	recs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Nil(t, recs[0].Solution)
	assert.Equal(t, models.FileStatusSuccess, recs[0].Status)

	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Delete(ctx, "b"))
	recs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(recs))

	require.NoError(t, s.Clear(ctx))
	recs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryContract(t *testing.T) {
	runContract(t, NewMemory())
}

func TestMemoryOrdersTiesByInsertion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BulkCreate(ctx, []Record{record("z", 5), record("y", 5), record("x", 5)}))
	recs, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, ids(recs))
}

func TestPatchClearSolution(t *testing.T) {
	rec := record("a", 1)
	rec.Solution = &models.Solution{Status: models.SolutionFailed}
	Patch{ClearSolution: true}.Apply(&rec)
	assert.Nil(t, rec.Solution)
}

// objectStore is an in-memory storage.Storage
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newObjectStore() *objectStore {
	return &objectStore{objects: make(map[string][]byte)}
}

func (o *objectStore) Store(_ context.Context, r io.Reader, key string) (string, error) {
	if o.failPut {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	o.objects[key] = data
	o.mu.Unlock()
	return key, nil
}

func (o *objectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *objectStore) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	delete(o.objects, key)
	o.mu.Unlock()
	return nil
}

func (o *objectStore) CleanupBefore(_ context.Context, prefix string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k := range o.objects {
		if strings.HasPrefix(k, prefix) {
			delete(o.objects, k)
		}
	}
	return nil
}

func TestBlobOffloadContract(t *testing.T) {
	runContract(t, WithBlobs(NewMemory(), newObjectStore(), "homework", logger.NewTestLogger()))
}

func TestBlobOffloadKeepsOnlyKeys(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	objects := newObjectStore()
	b := WithBlobs(inner, objects, "hw", logger.NewTestLogger())

	require.NoError(t, b.Create(ctx, record("a", 1)))
	raw, ok := inner.Get("a")
	require.True(t, ok)
	assert.Nil(t, raw.Blob)
	assert.Equal(t, "hw/a", raw.BlobKey)
	assert.Equal(t, []byte("content-a"), objects.objects["hw/a"])

	require.NoError(t, b.Update(ctx, "a", Patch{Blob: []byte("binarized")}))
	recs, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("binarized"), recs[0].Blob)

	require.NoError(t, b.Delete(ctx, "a"))
	assert.Empty(t, objects.objects)
}

func TestBlobOffloadMissingObject(t *testing.T) {
	ctx := context.Background()
	objects := newObjectStore()
	log := logger.NewTestLogger()
	b := WithBlobs(NewMemory(), objects, "hw", log)
	require.NoError(t, b.Create(ctx, record("a", 1)))
	delete(objects.objects, "hw/a")

	recs, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Blob)
	assert.Equal(t, 1, log.Count("WARN", "Failed to load record content"))

	objects.failPut = true
	assert.Error(t, b.Create(ctx, record("b", 2)))
}

func TestRedisContract(t *testing.T) {
	addr := os.Getenv("SKIDHW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SKIDHW_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	r := NewRedis(client, "skidhw-test")
	defer r.Close()
	runContract(t, r)
}
