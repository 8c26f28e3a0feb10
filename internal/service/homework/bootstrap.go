package homework

import (
	"context"
	"errors"
	"fmt"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/internal/agent"
	"github.com/yangshenhuai/skid-homework/internal/agent/document/image"
	"github.com/yangshenhuai/skid-homework/internal/agent/document/pdf"
	"github.com/yangshenhuai/skid-homework/internal/scan"
	"github.com/yangshenhuai/skid-homework/internal/store"
	"github.com/yangshenhuai/skid-homework/internal/utils/validator"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

// App is a fully wired service and the resources it owns
type App struct {
	Service *Service
	Store   *store.Store
	Clients *agent.ClientFactory
	Records recordstore.Store
}

// GetService wires the record store, state store, providers and
// orchestrator from cfg and rehydrates the persisted pages
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	records, err := recordstore.Open(ctx, cfg, log.Named("records"))
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	st := store.New(records, log)
	if err := st.Initialize(ctx); err != nil {
		_ = st.Close(ctx)
		_ = records.Close()
		return nil, fmt.Errorf("failed to rehydrate store: %w", err)
	}

	clients := agent.NewClientFactory(log)
	orch := scan.New(st, clients, scan.Config{
		Concurrency:  cfg.Scan.Concurrency,
		MaxAttempts:  cfg.Scan.MaxAttempts,
		InitialDelay: cfg.Scan.InitialDelay,
		Traits:       cfg.Scan.Traits,
	}, log)

	v := validator.NewDocumentValidator(log, &validator.ValidatorConfig{
		MaxFileSize:  cfg.Ingest.MaxFileSize,
		MaxPageCount: cfg.Ingest.MaxPdfPages,
	}, pdf.NewProcessor(log))

	svc := NewService(st, orch, clients, v, image.NewBinarizer(log, image.DefaultPreprocessConfig()), log, Config{
		AI:       cfg.AI,
		Binarize: cfg.Ingest.Binarize,
	})

	if n := len(st.Items()); n > 0 {
		log.Info("Rehydrated pages", logger.Int("items", n))
	}
	return &App{Service: svc, Store: st, Clients: clients, Records: records}, nil
}

// Close stops background work, drains persistence and releases clients
func (a *App) Close(ctx context.Context) error {
	return errors.Join(
		a.Service.Close(ctx),
		a.Store.Close(ctx),
		a.Clients.Close(),
		a.Records.Close(),
	)
}
