package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangshenhuai/skid-homework/internal/agent/provider"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

func TestCanProcess(t *testing.T) {
	assert.True(t, CanProcess(models.ProviderOpenAI, "image/png"))
	assert.True(t, CanProcess(models.ProviderOllama, "image/jpeg"))
	assert.False(t, CanProcess(models.ProviderOpenAI, MimePDF))
	assert.False(t, CanProcess(models.ProviderAnthropic, MimePDF))
	assert.True(t, CanProcess(models.ProviderGemini, MimePDF))
	assert.False(t, CanProcess(models.ProviderGemini, "application/zip"))

	assert.True(t, AnyCanProcess([]models.AiSource{{Provider: models.ProviderOpenAI}, {Provider: models.ProviderGemini}}, MimePDF))
	assert.False(t, AnyCanProcess([]models.AiSource{{Provider: models.ProviderOpenAI}}, MimePDF))
}

func TestMIMEFromName(t *testing.T) {
	m, ok := MIMEFromName("Page 1.JPG")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", m)
	_, ok = MIMEFromName("notes.docx")
	assert.False(t, ok)
}

func TestClientForCachesBySource(t *testing.T) {
	f := NewClientFactory(logger.NewTestLogger())
	defer f.Close()
	ctx := context.Background()

	src := models.AiSource{ID: "a", Provider: models.ProviderOllama, APIKey: "k", BaseURL: "http://localhost:1"}
	c1, err := f.ClientFor(ctx, src)
	require.NoError(t, err)
	c2, err := f.ClientFor(ctx, src)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	src.BaseURL = "http://localhost:2"
	c3, err := f.ClientFor(ctx, src)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)

	_, isOllama := c3.(*provider.Ollama)
	assert.True(t, isOllama)
}

func TestClientForErrors(t *testing.T) {
	f := NewClientFactory(logger.NewTestLogger())
	ctx := context.Background()

	_, err := f.ClientFor(ctx, models.AiSource{ID: "a", Provider: models.ProviderOpenAI})
	require.ErrorIs(t, err, ErrMissingCredential)

	_, err = f.ClientFor(ctx, models.AiSource{ID: "b", Provider: "mystery", APIKey: "k"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestBuildSolvePrompt(t *testing.T) {
	assert.Equal(t, "BASE", BuildSolvePrompt("BASE", "", " "))
	assert.Equal(t,
		"BASE\nUser defined prompts:\n<prompt>\nuse metric\n</prompt>\n\nUser defined traits:\n<traits>\nanswer in French\n</traits>\n",
		BuildSolvePrompt("BASE", "use metric", "answer in French"),
	)
	assert.Equal(t,
		"BASE\nUser defined traits:\n<traits>\nbe short\n</traits>\n",
		BuildSolvePrompt("BASE", "", "be short"),
	)
}
