package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

const anthropicMaxTokens = 8192

type Anthropic struct {
	systemPrompt
	client anthropic.Client
}

func NewAnthropic(apiKey, baseURL string) *Anthropic {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

func (c *Anthropic) SendMedia(ctx context.Context, base64Content, mimeType, prompt, model string, onChunk StreamFunc) (string, error) {
	if !isImage(mimeType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewImageBlockBase64(mimeType, base64Content)}
	if prompt != "" {
		blocks = append(blocks, anthropic.NewTextBlock(prompt))
	}
	return c.stream(ctx, model, []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)}, onChunk)
}

func (c *Anthropic) SendChat(ctx context.Context, messages []models.ChatMessage, model string, onChunk StreamFunc) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return c.stream(ctx, model, msgs, onChunk)
}

func (c *Anthropic) stream(ctx context.Context, model string, msgs []anthropic.MessageParam, onChunk StreamFunc) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages:  msgs,
	}
	if sys := c.systemPrompt.current(); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	out := &collector{onChunk: onChunk}
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				out.add(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic stream failed: %w", err)
	}
	return out.String(), nil
}

func (c *Anthropic) GetAvailableModels(ctx context.Context) ([]models.ModelSummary, error) {
	page, err := c.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list anthropic models: %w", err)
	}
	out := make([]models.ModelSummary, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, models.ModelSummary{Name: m.ID, DisplayName: m.DisplayName})
	}
	return dedupeModels(out), nil
}
