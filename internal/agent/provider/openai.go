package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

// OpenAI talks to the OpenAI chat completions API or any compatible server
type OpenAI struct {
	systemPrompt
	client openai.Client
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (c *OpenAI) SendMedia(ctx context.Context, base64Content, mimeType, prompt, model string, onChunk StreamFunc) (string, error) {
	if !isImage(mimeType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(mimeType, base64Content),
		}),
	}
	if prompt != "" {
		parts = append(parts, openai.TextContentPart(prompt))
	}
	return c.stream(ctx, model, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)}, onChunk)
}

func (c *OpenAI) SendChat(ctx context.Context, messages []models.ChatMessage, model string, onChunk StreamFunc) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return c.stream(ctx, model, msgs, onChunk)
}

func (c *OpenAI) stream(ctx context.Context, model string, msgs []openai.ChatCompletionMessageParamUnion, onChunk StreamFunc) (string, error) {
	if sys := c.systemPrompt.current(); sys != "" {
		msgs = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(sys)}, msgs...)
	}
	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})
	defer stream.Close()

	out := &collector{onChunk: onChunk}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		out.add(chunk.Choices[0].Delta.Content)
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai stream failed: %w", err)
	}
	return out.String(), nil
}

func (c *OpenAI) GetAvailableModels(ctx context.Context) ([]models.ModelSummary, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list openai models: %w", err)
	}
	out := make([]models.ModelSummary, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, models.ModelSummary{Name: m.ID})
	}
	return dedupeModels(out), nil
}
