// Package provider wraps the AI vendor SDKs behind one streaming client
// contract.
package provider

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

// StreamFunc receives each text delta as it arrives
type StreamFunc func(delta string)

var ErrUnsupportedMedia = errors.New("media type not supported by provider")

// Client is one configured AI source
type Client interface {
	// SetSystemPrompt sets the instructions used by later calls
	SetSystemPrompt(prompt string)
	// SendMedia sends base64 content with an optional prompt and returns the
	// full response text
	SendMedia(ctx context.Context, base64Content, mimeType, prompt, model string, onChunk StreamFunc) (string, error)
	SendChat(ctx context.Context, messages []models.ChatMessage, model string, onChunk StreamFunc) (string, error)
}

// ModelLister is implemented by clients that can enumerate models
type ModelLister interface {
	GetAvailableModels(ctx context.Context) ([]models.ModelSummary, error)
}

type systemPrompt struct {
	mu   sync.RWMutex
	text string
}

func (p *systemPrompt) SetSystemPrompt(prompt string) {
	p.mu.Lock()
	p.text = prompt
	p.mu.Unlock()
}

func (p *systemPrompt) current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// collector accumulates streamed text and forwards deltas
type collector struct {
	sb      strings.Builder
	onChunk StreamFunc
}

func (c *collector) add(delta string) {
	if delta == "" {
		return
	}
	c.sb.WriteString(delta)
	if c.onChunk != nil {
		c.onChunk(delta)
	}
}

func (c *collector) String() string { return c.sb.String() }

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

func dataURL(mimeType, base64Content string) string {
	return "data:" + mimeType + ";base64," + base64Content
}

// dedupeModels drops empty and repeated names and sorts by name
func dedupeModels(in []models.ModelSummary) []models.ModelSummary {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.ModelSummary, 0, len(in))
	for _, m := range in {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		if m.DisplayName == "" {
			m.DisplayName = m.Name
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
