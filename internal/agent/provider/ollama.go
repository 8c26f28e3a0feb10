package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

const defaultOllamaEndpoint = "http://localhost:11434"

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaChatChunk is one NDJSON line of a streaming /api/chat response
type ollamaChatChunk struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Ollama talks to a local or proxied Ollama server over its HTTP API
type Ollama struct {
	systemPrompt
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewOllama(endpoint, apiKey string) *Ollama {
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	return &Ollama{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *Ollama) SendMedia(ctx context.Context, base64Content, mimeType, prompt, model string, onChunk StreamFunc) (string, error) {
	if !isImage(mimeType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}
	msg := ollamaMessage{Role: "user", Content: prompt, Images: []string{base64Content}}
	return c.chat(ctx, model, []ollamaMessage{msg}, onChunk)
}

func (c *Ollama) SendChat(ctx context.Context, messages []models.ChatMessage, model string, onChunk StreamFunc) (string, error) {
	msgs := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	return c.chat(ctx, model, msgs, onChunk)
}

func (c *Ollama) chat(ctx context.Context, model string, msgs []ollamaMessage, onChunk StreamFunc) (string, error) {
	if sys := c.systemPrompt.current(); sys != "" {
		msgs = append([]ollamaMessage{{Role: "system", Content: sys}}, msgs...)
	}
	reqData, err := json.Marshal(ollamaChatRequest{Model: model, Messages: msgs, Stream: true})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/chat", bytes.NewReader(reqData))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	out := &collector{onChunk: onChunk}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama error: %s", chunk.Error)
		}
		out.add(chunk.Message.Content)
		if chunk.Done {
			return out.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return "", fmt.Errorf("ollama stream ended before done")
}

func (c *Ollama) GetAvailableModels(ctx context.Context) ([]models.ModelSummary, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	out := make([]models.ModelSummary, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		out = append(out, models.ModelSummary{Name: name})
	}
	return dedupeModels(out), nil
}

func (c *Ollama) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(data))
	}
	return resp, nil
}

func (c *Ollama) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
