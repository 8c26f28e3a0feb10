// Package worker runs indexed jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// HandlerFunc processes job i. A non-nil error stops the pool.
type HandlerFunc func(ctx context.Context, i int) error

type Config struct {
	Concurrency int
}

// Pool hands out job indexes from a shared cursor, so each index goes to
// exactly one worker.
type Pool struct {
	cfg    Config
	logger logger.Logger
}

func NewPool(cfg Config, log logger.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pool{cfg: cfg, logger: log}
}

// Workers is the number of goroutines Run starts for n jobs
func (p *Pool) Workers(n int) int {
	return min(p.cfg.Concurrency, n)
}

// Run processes jobs 0..n-1 and waits for every worker. Workers stop pulling
// new jobs once ctx is done.
func (p *Pool) Run(ctx context.Context, n int, handle HandlerFunc) error {
	workers := p.Workers(n)
	if workers <= 0 {
		return nil
	}

	var cursor atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}
				if err := handle(gctx, i); err != nil {
					return err
				}
			}
		})
	}

	p.logger.Debug("Worker pool started",
		logger.Int("jobs", n),
		logger.Int("workers", workers),
	)
	return g.Wait()
}
