package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yangshenhuai/skid-homework/internal/agent/provider"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

var (
	ErrMissingCredential = errors.New("source has no credential")
	ErrUnknownProvider   = errors.New("unknown provider")
)

const MimePDF = "application/pdf"

// extToMIME maps upload extensions to MIME types
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  MimePDF,
}

// MIMEFromName returns the MIME type for a file name's extension
func MIMEFromName(name string) (string, bool) {
	m, ok := extToMIME[strings.ToLower(filepath.Ext(name))]
	return m, ok
}

// CanProcess reports whether a provider kind accepts the MIME type
func CanProcess(kind models.ProviderKind, mimeType string) bool {
	if strings.HasPrefix(mimeType, "image/") {
		return true
	}
	return mimeType == MimePDF && kind == models.ProviderGemini
}

// AnyCanProcess reports whether some source in the list accepts mimeType
func AnyCanProcess(sources []models.AiSource, mimeType string) bool {
	for _, s := range sources {
		if CanProcess(s.Provider, mimeType) {
			return true
		}
	}
	return false
}

type cachedClient struct {
	fingerprint string
	client      provider.Client
}

// ClientFactory builds and caches one provider client per source id
type ClientFactory struct {
	mu      sync.Mutex
	clients map[string]cachedClient
	logger  logger.Logger
}

func NewClientFactory(log logger.Logger) *ClientFactory {
	return &ClientFactory{
		clients: make(map[string]cachedClient),
		logger:  log.Named("providers"),
	}
}

func fingerprint(s models.AiSource) string {
	return strings.Join([]string{string(s.Provider), s.APIKey, s.BaseURL, s.Project, s.Region}, "\x00")
}

// ClientFor returns the client for source, creating it on first use or
// when the source's connection settings changed
func (f *ClientFactory) ClientFor(ctx context.Context, source models.AiSource) (provider.Client, error) {
	if source.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, source.Label())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fp := fingerprint(source)
	if c, ok := f.clients[source.ID]; ok && c.fingerprint == fp {
		return c.client, nil
	}

	client, err := newClient(ctx, source)
	if err != nil {
		f.logger.Error("Failed to create provider client",
			logger.String("source", source.ID),
			logger.String("provider", string(source.Provider)),
			logger.Error(err),
		)
		return nil, err
	}
	if old, ok := f.clients[source.ID]; ok {
		closeClient(old.client)
	}
	f.clients[source.ID] = cachedClient{fingerprint: fp, client: client}
	f.logger.Debug("Provider client created",
		logger.String("source", source.ID),
		logger.String("provider", string(source.Provider)),
	)
	return client, nil
}

func newClient(ctx context.Context, s models.AiSource) (provider.Client, error) {
	switch s.Provider {
	case models.ProviderOpenAI:
		return provider.NewOpenAI(s.APIKey, s.BaseURL), nil
	case models.ProviderAnthropic:
		return provider.NewAnthropic(s.APIKey, s.BaseURL), nil
	case models.ProviderGemini:
		return provider.NewGemini(ctx, s.Project, s.Region, s.APIKey)
	case models.ProviderOllama:
		return provider.NewOllama(s.BaseURL, s.APIKey), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, s.Provider)
	}
}

func closeClient(c provider.Client) {
	if closer, ok := c.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// Close releases every cached client
func (f *ClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.clients {
		closeClient(c.client)
		delete(f.clients, id)
	}
	return nil
}
