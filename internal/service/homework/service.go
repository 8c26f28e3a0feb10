// Package homework is the application service behind the HTTP API and the
// batch worker.
package homework

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/internal/agent"
	"github.com/yangshenhuai/skid-homework/internal/agent/provider"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/scan"
	"github.com/yangshenhuai/skid-homework/internal/store"
	"github.com/yangshenhuai/skid-homework/internal/utils/validator"
	"github.com/yangshenhuai/skid-homework/pkg/converters"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

var (
	ErrItemNotFound       = errors.New("item not found")
	ErrSolutionNotFound   = errors.New("item has no solution")
	ErrProblemNotFound    = errors.New("problem not found")
	ErrSourceNotFound     = errors.New("AI source not found")
	ErrModelsUnsupported  = errors.New("provider cannot list models")
	ErrInvalidName        = errors.New("display name must not be empty")
	ErrInvalidSource      = errors.New("unknown capture source")
	ErrServiceClosed      = errors.New("service is closed")
	ErrNothingToIngest    = errors.New("no files given")
	ErrAllUploadsRejected = errors.New("every file was rejected")
)

// Binarizer cleans up photographed pages
type Binarizer interface {
	CanProcess(mimeType string) bool
	Binarize(ctx context.Context, content []byte) ([]byte, error)
}

// Scanner runs one scan over the store
type Scanner interface {
	Validate(items []models.FileItem, chain []models.AiSource) error
	Scan(ctx context.Context, chain []models.AiSource) (*scan.Report, error)
}

type Config struct {
	AI       config.AIConfig
	Binarize bool
	// ExportTitle heads exported documents
	ExportTitle string
}

// ScanStatus is the state of the most recent scan
type ScanStatus struct {
	Working bool         `json:"working"`
	Report  *scan.Report `json:"report,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type Service struct {
	store     *store.Store
	scanner   Scanner
	clients   scan.ClientSource
	validator *validator.DocumentValidator
	binarizer Binarizer
	cfg       Config
	logger    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	mu         sync.Mutex
	scanning   bool
	scanCancel context.CancelFunc
	lastReport *scan.Report
	lastErr    error
	closed     bool
}

func NewService(
	st *store.Store,
	scanner Scanner,
	clients scan.ClientSource,
	v *validator.DocumentValidator,
	binarizer Binarizer,
	log logger.Logger,
	cfg Config,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     st,
		scanner:   scanner,
		clients:   clients,
		validator: v,
		binarizer: binarizer,
		cfg:       cfg,
		logger:    log.Named("homework"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Store exposes the state store for read-side handlers
func (s *Service) Store() *store.Store {
	return s.store
}

// Sources returns the configured sources in configured order
func (s *Service) Sources() []models.AiSource {
	return append([]models.AiSource(nil), s.cfg.AI.Sources...)
}

// Chain returns the failover chain for the next scan
func (s *Service) Chain() []models.AiSource {
	return scan.BuildChain(s.cfg.AI.Sources, s.cfg.AI.ActiveSourceID)
}

func (s *Service) Rename(id, name string) (models.FileItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.FileItem{}, ErrInvalidName
	}
	if _, ok := s.store.Item(id); !ok {
		return models.FileItem{}, ErrItemNotFound
	}
	s.store.RenameItem(id, name)
	it, _ := s.store.Item(id)
	return it, nil
}

func (s *Service) Remove(id string) error {
	if _, ok := s.store.Item(id); !ok {
		return ErrItemNotFound
	}
	s.store.RemoveItem(id)
	return nil
}

// ClearAll drops every item and solution. It is refused while a scan runs.
func (s *Service) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanning {
		return scan.ErrScanInProgress
	}
	s.store.ClearAll()
	return nil
}

func (s *Service) Content(id string) ([]byte, string, error) {
	it, ok := s.store.Item(id)
	if !ok {
		return nil, "", ErrItemNotFound
	}
	content, mimeType, ok := s.store.Content(it.URL)
	if !ok {
		return nil, "", ErrItemNotFound
	}
	return content, mimeType, nil
}

func (s *Service) Solution(id string) (models.Solution, error) {
	it, ok := s.store.Item(id)
	if !ok {
		return models.Solution{}, ErrItemNotFound
	}
	sol, ok := s.store.Solution(it.URL)
	if !ok {
		return models.Solution{}, ErrSolutionNotFound
	}
	return sol, nil
}

// UpdateProblem replaces the editable fields of one problem of an item
func (s *Service) UpdateProblem(id string, index int, patch models.ProblemPatch) (models.Solution, error) {
	it, ok := s.store.Item(id)
	if !ok {
		return models.Solution{}, ErrItemNotFound
	}
	if _, ok := s.store.Solution(it.URL); !ok {
		return models.Solution{}, ErrSolutionNotFound
	}
	if !s.store.UpdateProblem(it.URL, index, patch) {
		return models.Solution{}, ErrProblemNotFound
	}
	sol, _ := s.store.Solution(it.URL)
	return sol, nil
}

// Export renders every page with problems in item order
func (s *Service) Export(format string) ([]byte, converters.SolutionConverter, error) {
	conv, err := converters.ForFormat(format)
	if err != nil {
		return nil, nil, err
	}
	var pages []converters.Page
	for _, it := range s.store.Items() {
		if sol, ok := s.store.Solution(it.URL); ok {
			pages = append(pages, converters.Page{Item: it, Solution: sol})
		}
	}
	out, err := conv.Convert(s.cfg.ExportTitle, pages)
	if err != nil {
		return nil, nil, err
	}
	return out, conv, nil
}

// ListModels asks a configured source's provider for its models
func (s *Service) ListModels(ctx context.Context, sourceID string) ([]models.ModelSummary, error) {
	src, ok := s.cfg.AI.Source(sourceID)
	if !ok {
		return nil, ErrSourceNotFound
	}
	client, err := s.clients.ClientFor(ctx, src)
	if err != nil {
		return nil, err
	}
	lister, ok := client.(provider.ModelLister)
	if !ok {
		return nil, ErrModelsUnsupported
	}
	list, err := lister.GetAvailableModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models for %s: %w", src.Label(), err)
	}
	return list, nil
}

// pdfReadable reports whether some chain source accepts PDFs
func (s *Service) pdfReadable() bool {
	return agent.AnyCanProcess(s.Chain(), agent.MimePDF)
}

// Close cancels background work and waits for it
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return s.wait(ctx)
}

// WaitIdle blocks until background binarization and scans finish
func (s *Service) WaitIdle(ctx context.Context) error {
	return s.wait(ctx)
}

func (s *Service) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// goBackground runs fn on the service context unless the service is closed
func (s *Service) goBackground(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn(s.ctx)
	}()
	return true
}
