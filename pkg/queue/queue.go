// Package queue runs side effects in order on a background goroutine so the
// caller never waits on them.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)

// Task is one deferred side effect
type Task struct {
	Type string
	Key  string
	Run  func(ctx context.Context) error

	enqueuedAt time.Time
	done       chan struct{}
}

// Queue accepts tasks and runs them one at a time in submission order
type Queue interface {
	// Enqueue never blocks; a full queue drops the task with ErrFull
	Enqueue(task *Task) error
	// Flush waits until every task enqueued before the call has run
	Flush(ctx context.Context) error
	// Close drains the queue and stops the runner
	Close(ctx context.Context) error
}

// QueueConfig defines write-behind settings
type QueueConfig struct {
	Capacity    int
	TaskTimeout time.Duration
}

// WriteBehind is a single-runner Queue. Task errors go to the logger and
// nowhere else.
type WriteBehind struct {
	tasks   chan *Task
	cfg     QueueConfig
	logger  logger.Logger
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
}

func NewWriteBehind(cfg QueueConfig, log logger.Logger) *WriteBehind {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	q := &WriteBehind{
		tasks:   make(chan *Task, cfg.Capacity),
		cfg:     cfg,
		logger:  log,
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *WriteBehind) Enqueue(task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("Dropping task after close",
			logger.String("type", task.Type),
			logger.String("key", task.Key),
		)
		return ErrClosed
	}
	task.enqueuedAt = time.Now()
	select {
	case q.tasks <- task:
		return nil
	default:
		q.logger.Error("Persistence queue full, dropping task",
			logger.String("type", task.Type),
			logger.String("key", task.Key),
			logger.Int("capacity", q.cfg.Capacity),
		)
		return ErrFull
	}
}

// Flush waits for room in a full queue instead of dropping the barrier
func (q *WriteBehind) Flush(ctx context.Context) error {
	barrier := &Task{Type: "flush", done: make(chan struct{})}
	if err := q.push(ctx, barrier); err != nil {
		return err
	}
	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteBehind) push(ctx context.Context, task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("Dropping task after close",
			logger.String("type", task.Type),
			logger.String("key", task.Key),
		)
		return ErrClosed
	}
	task.enqueuedAt = time.Now()
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteBehind) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteBehind) run() {
	defer close(q.stopped)
	for task := range q.tasks {
		if task.done != nil {
			close(task.done)
			continue
		}
		if task.Run != nil {
			q.execute(task)
		}
	}
}

func (q *WriteBehind) execute(task *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.TaskTimeout)
	defer cancel()

	if err := task.Run(ctx); err != nil {
		q.logger.Error("Persistence task failed",
			logger.String("type", task.Type),
			logger.String("key", task.Key),
			logger.Duration("queued", time.Since(task.enqueuedAt)),
			logger.Error(err),
		)
	}
}
