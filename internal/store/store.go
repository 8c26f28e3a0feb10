// Package store holds the in-memory state of homework pages and their
// solutions and mirrors committed changes into a record store.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/queue"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

const locatorScheme = "blob:skidhw/"

// NewLocator returns a fresh session-scoped content locator
func NewLocator() string {
	return locatorScheme + uuid.NewString()
}

// Store is the only mutator of FileItem and Solution state. Mutators never
// fail because of persistence; durable writes run on a write-behind queue
// and their errors are logged.
type Store struct {
	mu          sync.RWMutex
	items       []*models.FileItem
	solutions   map[string]*models.Solution
	working     bool
	lastCreated int64

	records    recordstore.Store
	persist    queue.Queue
	logger     logger.Logger
	newLocator func() string
	now        func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan models.Event
	nextSub int
}

type Option func(*Store)

// WithQueue replaces the default write-behind queue
func WithQueue(q queue.Queue) Option {
	return func(s *Store) { s.persist = q }
}

// WithLocatorFunc replaces NewLocator
func WithLocatorFunc(fn func() string) Option {
	return func(s *Store) { s.newLocator = fn }
}

// WithClock replaces time.Now for createdAt stamps
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

func New(records recordstore.Store, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		solutions:  make(map[string]*models.Solution),
		records:    records,
		logger:     log.Named("store"),
		newLocator: NewLocator,
		now:        time.Now,
		subs:       make(map[int]chan models.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persist == nil {
		s.persist = queue.NewWriteBehind(queue.QueueConfig{}, s.logger.Named("persist"))
	}
	return s
}

// Flush waits for every persistence task queued so far
func (s *Store) Flush(ctx context.Context) error {
	return s.persist.Flush(ctx)
}

// Close drains pending persistence and stops the queue
func (s *Store) Close(ctx context.Context) error {
	err := s.persist.Close(ctx)
	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
	return err
}

// SetWorking records whether a scan is running
func (s *Store) SetWorking(working bool) {
	s.mu.Lock()
	s.working = working
	s.mu.Unlock()
	s.publish(models.Event{Type: models.EventWorking, Working: working})
}

func (s *Store) Working() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working
}

// Subscribe returns a channel of store events and a function that ends the
// subscription. Events are dropped when the channel is full.
func (s *Store) Subscribe(buffer int) (<-chan models.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

func (s *Store) publish(ev models.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// enqueue must be called with s.mu held so tasks run in mutation order
func (s *Store) enqueue(op, id string, run func(ctx context.Context) error) {
	_ = s.persist.Enqueue(&queue.Task{Type: op, Key: id, Run: run})
}

// persistPatch updates the record of item, recreating it from the snapshot
// when the record is missing.
func (s *Store) persistPatch(op string, item *models.FileItem, patch recordstore.Patch) {
	snapshot := s.recordOf(item)
	patch.Apply(&snapshot)
	s.enqueue(op, item.ID, func(ctx context.Context) error {
		err := s.records.Update(ctx, snapshot.ID, patch)
		if err == nil {
			return nil
		}
		if !errors.Is(err, recordstore.ErrNotFound) {
			return err
		}
		s.logger.Warn("Record missing, recreating",
			logger.String("op", op),
			logger.String("id", snapshot.ID),
		)
		return s.records.Create(ctx, snapshot)
	})
}

// recordOf builds the durable projection of item; caller holds s.mu
func (s *Store) recordOf(item *models.FileItem) recordstore.Record {
	rec := recordstore.Record{
		ID:        item.ID,
		Blob:      item.Content,
		FileName:  item.DisplayName,
		MimeType:  item.MimeType,
		Source:    item.Source,
		Status:    item.Status,
		CreatedAt: item.CreatedAt,
	}
	if sol, ok := s.solutions[item.URL]; ok {
		d := sol.Durable()
		rec.Solution = &d
	}
	return rec
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) itemByURL(url string) *models.FileItem {
	for _, it := range s.items {
		if it.URL == url {
			return it
		}
	}
	return nil
}

// nextCreatedAt returns a strictly increasing millisecond stamp so records
// created in one batch keep their order
func (s *Store) nextCreatedAt() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastCreated {
		ts = s.lastCreated + 1
	}
	s.lastCreated = ts
	return ts
}
