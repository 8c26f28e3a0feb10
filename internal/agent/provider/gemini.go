package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

// Gemini calls Vertex AI. It accepts PDFs as well as images and has no
// model listing.
type Gemini struct {
	systemPrompt
	client *genai.Client
}

// NewGemini creates a Vertex AI client. credential may be a service
// account JSON document, a path to one, or an API key.
func NewGemini(ctx context.Context, project, region, credential string) (*Gemini, error) {
	if project == "" || region == "" {
		return nil, fmt.Errorf("gemini source needs project and region")
	}
	client, err := genai.NewClient(ctx, project, region, credentialOption(credential))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Gemini{client: client}, nil
}

func credentialOption(credential string) option.ClientOption {
	trimmed := strings.TrimSpace(credential)
	if strings.HasPrefix(trimmed, "{") {
		return option.WithCredentialsJSON([]byte(trimmed))
	}
	if _, err := os.Stat(trimmed); err == nil {
		return option.WithCredentialsFile(trimmed)
	}
	return option.WithAPIKey(trimmed)
}

func (c *Gemini) model(name string) *genai.GenerativeModel {
	m := c.client.GenerativeModel(name)
	if sys := c.systemPrompt.current(); sys != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}
	return m
}

func (c *Gemini) SendMedia(ctx context.Context, base64Content, mimeType, prompt, model string, onChunk StreamFunc) (string, error) {
	if !isImage(mimeType) && mimeType != "application/pdf" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}
	data, err := base64.StdEncoding.DecodeString(base64Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode media: %w", err)
	}
	parts := []genai.Part{genai.Blob{MIMEType: mimeType, Data: data}}
	if prompt != "" {
		parts = append(parts, genai.Text(prompt))
	}
	return collectStream(c.model(model).GenerateContentStream(ctx, parts...), onChunk)
}

func (c *Gemini) SendChat(ctx context.Context, messages []models.ChatMessage, model string, onChunk StreamFunc) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages to send")
	}
	cs := c.model(model).StartChat()
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	last := messages[len(messages)-1]
	return collectStream(cs.SendMessageStream(ctx, genai.Text(last.Content)), onChunk)
}

func collectStream(iter *genai.GenerateContentResponseIterator, onChunk StreamFunc) (string, error) {
	out := &collector{onChunk: onChunk}
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.add(string(text))
			}
		}
	}
}

func (c *Gemini) Close() error {
	return c.client.Close()
}
