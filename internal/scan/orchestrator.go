// Package scan drives batches of homework pages through the AI failover
// chain with bounded parallelism.
package scan

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yangshenhuai/skid-homework/internal/agent"
	"github.com/yangshenhuai/skid-homework/internal/agent/provider"
	"github.com/yangshenhuai/skid-homework/internal/agent/response"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/store"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/worker"
)

const DefaultConcurrency = 4

// ClientSource resolves a source to its provider client
type ClientSource interface {
	ClientFor(ctx context.Context, source models.AiSource) (provider.Client, error)
}

// ParseFunc turns raw provider text into a solve result
type ParseFunc func(text string) (*response.SolveResponse, error)

type Config struct {
	Concurrency int
	MaxAttempts int
	// InitialDelay is the first backoff wait; zero retries immediately
	InitialDelay time.Duration
	// Traits is the global trait text appended after source traits
	Traits string
	// SystemPrompt defaults to agent.SolveSystemPrompt
	SystemPrompt string
}

// DefaultConfig is four workers with DefaultRetryPolicy
func DefaultConfig() Config {
	return Config{
		Concurrency:  DefaultConcurrency,
		MaxAttempts:  DefaultRetryPolicy.MaxAttempts,
		InitialDelay: DefaultRetryPolicy.InitialDelay,
	}
}

// Report summarizes one scan invocation
type Report struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Workers   int           `json:"workers"`
	Duration  time.Duration `json:"duration"`
	Cancelled bool          `json:"cancelled"`
}

type Orchestrator struct {
	store   *store.Store
	clients ClientSource
	cfg     Config
	parse   ParseFunc
	sleep   SleepFunc
	logger  logger.Logger
}

type Option func(*Orchestrator)

// WithSleep replaces the backoff timer
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithParser replaces response.ParseSolveResponse
func WithParser(fn ParseFunc) Option {
	return func(o *Orchestrator) { o.parse = fn }
}

func New(st *store.Store, clients ClientSource, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = agent.SolveSystemPrompt
	}
	o := &Orchestrator{
		store:   st,
		clients: clients,
		cfg:     cfg,
		parse:   response.ParseSolveResponse,
		sleep:   Sleep,
		logger:  log.Named("scan"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks the preconditions of a scan over items without touching
// any state
func (o *Orchestrator) Validate(items []models.FileItem, chain []models.AiSource) error {
	if len(chain) == 0 {
		return ErrNoSource
	}
	for _, src := range chain {
		if strings.TrimSpace(src.Model) == "" {
			return &ModelNotConfiguredError{Source: src.Label()}
		}
	}
	for _, it := range items {
		if !agent.AnyCanProcess(chain, it.MimeType) {
			return &UnsupportedTypeError{MimeType: it.MimeType, Item: it.DisplayName}
		}
	}
	return nil
}

// Scan processes every pending or failed item through chain, in order of
// preference. Precondition failures abort before any state changes; item
// failures are recorded on the item and never abort the batch.
func (o *Orchestrator) Scan(ctx context.Context, chain []models.AiSource) (*Report, error) {
	var retryable []models.FileItem
	for _, it := range o.store.Items() {
		if it.Status.Retryable() {
			retryable = append(retryable, it)
		}
	}
	if len(retryable) == 0 {
		return nil, ErrNothingToScan
	}
	if err := o.Validate(retryable, chain); err != nil {
		o.logger.Warn("Scan rejected", logger.Error(err))
		return nil, err
	}

	urls := make([]string, len(retryable))
	for i, it := range retryable {
		urls[i] = it.URL
	}
	o.store.RemoveSolutionsByURLs(urls)

	o.store.SetWorking(true)
	defer o.store.SetWorking(false)

	start := time.Now()
	pool := worker.NewPool(worker.Config{Concurrency: o.cfg.Concurrency}, o.logger)
	report := &Report{Total: len(retryable), Workers: pool.Workers(len(retryable))}
	var succeeded, failed atomic.Int64

	o.logger.Info("Scan started",
		logger.Int("items", report.Total),
		logger.Int("workers", report.Workers),
		logger.Int("sources", len(chain)),
	)

	_ = pool.Run(ctx, len(retryable), func(ctx context.Context, i int) error {
		if o.processItem(ctx, retryable[i], chain) {
			succeeded.Add(1)
		} else {
			failed.Add(1)
		}
		return nil
	})

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(start)
	report.Cancelled = ctx.Err() != nil
	o.logger.Info("Scan finished",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Bool("cancelled", report.Cancelled),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// processItem runs one item to a terminal state and reports success
func (o *Orchestrator) processItem(ctx context.Context, item models.FileItem, chain []models.AiSource) bool {
	url := item.URL
	log := o.logger.With(logger.String("item", item.ID), logger.String("name", item.DisplayName))

	o.store.AddSolution(models.Solution{
		ImageURL: url,
		Status:   models.SolutionProcessing,
		Problems: []models.ProblemSolution{},
	})
	o.store.UpdateItem(item.ID, models.StatusPatch(models.FileStatusProcessing))

	content, mimeType, ok := o.store.Content(url)
	if !ok {
		o.fail(item, fmt.Errorf("content of %s is no longer available", item.DisplayName))
		return false
	}
	encoded := base64.StdEncoding.EncodeToString(content)

	var lastErr error
	for _, src := range chain {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if !agent.CanProcess(src.Provider, mimeType) {
			if lastErr == nil {
				lastErr = fmt.Errorf("%s does not accept %s", src.Label(), mimeType)
			}
			continue
		}

		res, err := o.solveWith(ctx, item, src, encoded, mimeType)
		if err == nil {
			o.succeed(item, src, res)
			log.Info("Item solved",
				logger.String("source", src.ID),
				logger.Int("problems", len(res.Problems)),
			)
			return true
		}
		lastErr = err
		log.Warn("Source exhausted, trying next",
			logger.String("source", src.ID),
			logger.Error(err),
		)
		o.store.ClearStreamedOutput(url)
	}

	log.Error("All sources failed", logger.Error(lastErr))
	o.fail(item, lastErr)
	return false
}

func (o *Orchestrator) solveWith(ctx context.Context, item models.FileItem, src models.AiSource, encoded, mimeType string) (*response.SolveResponse, error) {
	client, err := o.clients.ClientFor(ctx, src)
	if err != nil {
		return nil, err
	}
	client.SetSystemPrompt(agent.BuildSolvePrompt(o.cfg.SystemPrompt, src.Traits, o.cfg.Traits))

	url := item.URL
	policy := RetryPolicy{MaxAttempts: o.cfg.MaxAttempts, InitialDelay: o.cfg.InitialDelay}
	return Retry(ctx, policy, o.sleep,
		func(ctx context.Context, attempt int) (*response.SolveResponse, error) {
			o.store.ClearStreamedOutput(url)
			text, err := client.SendMedia(ctx, encoded, mimeType, "", src.Model, func(delta string) {
				o.store.AppendStreamedOutput(url, delta)
			})
			if err != nil {
				return nil, err
			}
			res, err := o.parse(text)
			if err != nil {
				return nil, fmt.Errorf("failed to parse response: %w", err)
			}
			return res, nil
		},
		func(attempt int, delay time.Duration, err error) {
			o.logger.Warn("Attempt failed, retrying",
				logger.String("item", item.ID),
				logger.String("source", src.ID),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
		},
	)
}

func (o *Orchestrator) succeed(item models.FileItem, src models.AiSource, res *response.SolveResponse) {
	status := models.SolutionSuccess
	sourceID := src.ID
	problems := res.Problems
	if problems == nil {
		problems = []models.ProblemSolution{}
	}
	o.store.UpdateSolution(item.URL, models.SolutionPatch{
		Status:     &status,
		Problems:   problems,
		AiSourceID: &sourceID,
	})
	o.store.UpdateItem(item.ID, models.StatusPatch(models.FileStatusSuccess))
}

// FailureProblem is the synthetic entry shown in place of real problems
func FailureProblem(err error) models.ProblemSolution {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	return models.ProblemSolution{
		Problem:     "Processing failed",
		Answer:      "No answer available",
		Explanation: fmt.Sprintf("None of the configured AI sources could solve this page.\n\nError: %v", err),
		Steps:       []models.ExplanationStep{},
	}
}

func (o *Orchestrator) fail(item models.FileItem, err error) {
	status := models.SolutionFailed
	none := ""
	o.store.UpdateSolution(item.URL, models.SolutionPatch{
		Status:     &status,
		Problems:   []models.ProblemSolution{FailureProblem(err)},
		AiSourceID: &none,
	})
	o.store.ClearStreamedOutput(item.URL)
	o.store.UpdateItem(item.ID, models.StatusPatch(models.FileStatusFailed))
}
