package homework

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/internal/agent/document/pdf"
	"github.com/yangshenhuai/skid-homework/internal/agent/provider"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/scan"
	"github.com/yangshenhuai/skid-homework/internal/store"
	"github.com/yangshenhuai/skid-homework/internal/utils/validator"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

const solved = `{"problems":[{"problem":"2x=4","answer":"x=2","explanation":"divide","steps":[{"title":"Divide","content":"x=4/2"}]}]}`

type stubClient struct {
	reply string
	err   error
	// gate blocks SendMedia until closed or ctx is done
	gate chan struct{}
}

func (c *stubClient) SetSystemPrompt(string) {}

func (c *stubClient) SendMedia(ctx context.Context, _, _, _, _ string, onChunk provider.StreamFunc) (string, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.err != nil {
		return "", c.err
	}
	onChunk(c.reply)
	return c.reply, nil
}

func (c *stubClient) SendChat(context.Context, []models.ChatMessage, string, provider.StreamFunc) (string, error) {
	return c.reply, c.err
}

type listingClient struct {
	stubClient
}

func (c *listingClient) GetAvailableModels(context.Context) ([]models.ModelSummary, error) {
	return []models.ModelSummary{{Name: "gpt-4o", DisplayName: "GPT-4o"}}, nil
}

type stubClients map[string]provider.Client

func (s stubClients) ClientFor(_ context.Context, src models.AiSource) (provider.Client, error) {
	c, ok := s[src.ID]
	if !ok {
		return nil, errors.New("no client")
	}
	return c, nil
}

type stubBinarizer struct {
	out []byte
	err error
}

func (b stubBinarizer) CanProcess(mimeType string) bool { return mimeType != pdf.MimeType }
func (b stubBinarizer) Binarize(context.Context, []byte) ([]byte, error) {
	return b.out, b.err
}

type fixedPages int

func (n fixedPages) Inspect(context.Context, []byte) (pdf.Metadata, error) {
	return pdf.Metadata{Pages: int(n)}, nil
}

type fixture struct {
	svc     *Service
	store   *store.Store
	clients stubClients
}

func newFixture(t *testing.T, sources []models.AiSource, clients stubClients, binarizer Binarizer, binarize bool) *fixture {
	t.Helper()
	log := logger.NewTestLogger()
	st := store.New(recordstore.NewMemory(), log)
	orch := scan.New(st, clients, scan.Config{MaxAttempts: 1}, log,
		scan.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	v := validator.NewDocumentValidator(log, nil, fixedPages(2))
	svc := NewService(st, orch, clients, v, binarizer, log, Config{
		AI:       config.AIConfig{ActiveSourceID: sources[0].ID, Sources: sources},
		Binarize: binarize,
	})
	t.Cleanup(func() {
		_ = svc.Close(context.Background())
		_ = st.Close(context.Background())
	})
	return &fixture{svc: svc, store: st, clients: clients}
}

func openAI(id string) models.AiSource {
	return models.AiSource{ID: id, Name: id, Provider: models.ProviderOpenAI, APIKey: "k", Model: "gpt-4o", Enabled: true}
}

func photo(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 64))))
	return buf.Bytes()
}

var pdfBytes = []byte("%PDF-1.7\n%fake\n")

func TestIngestReportsRejections(t *testing.T) {
	f := newFixture(t, []models.AiSource{openAI("a")}, stubClients{}, nil, false)

	res, err := f.svc.Ingest(context.Background(), []Upload{
		{Name: "p1.png", Content: photo(t)},
		{Name: "notes.txt", Content: []byte("just text")},
		{Name: "hw.pdf", Content: pdfBytes},
	}, models.SourceCamera)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, models.FileStatusPending, res.Added[0].Status)
	assert.Equal(t, models.SourceCamera, res.Added[0].Source)
	assert.Equal(t, "image/png", res.Added[0].MimeType)

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, validator.CodeInvalidFileType, res.Rejected[0].Code)
	assert.Equal(t, validator.CodePDFNotSupported, res.Rejected[1].Code)

	_, err = f.svc.Ingest(context.Background(), []Upload{{Name: "x.txt", Content: []byte("x")}}, "")
	assert.ErrorIs(t, err, ErrAllUploadsRejected)
	_, err = f.svc.Ingest(context.Background(), []Upload{{Name: "p.png", Content: photo(t)}}, "fax")
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestIngestAcceptsPDFWithGemini(t *testing.T) {
	gemini := models.AiSource{ID: "g", Provider: models.ProviderGemini, APIKey: "k", Model: "gemini-2.0-flash", Enabled: true}
	f := newFixture(t, []models.AiSource{openAI("a"), gemini}, stubClients{}, nil, false)

	res, err := f.svc.Ingest(context.Background(), []Upload{{Name: "hw.pdf", Content: pdfBytes}}, models.SourceUpload)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, pdf.MimeType, res.Added[0].MimeType)
}

func TestIngestBinarizesInBackground(t *testing.T) {
	f := newFixture(t, []models.AiSource{openAI("a")}, stubClients{}, stubBinarizer{out: []byte("clean-png")}, true)
	res, err := f.svc.Ingest(context.Background(), []Upload{{Name: "p1.jpg", Content: photo(t)}}, models.SourceUpload)
	require.NoError(t, err)
	added := res.Added[0]
	assert.Equal(t, models.FileStatusRasterizing, added.Status)

	require.NoError(t, f.svc.WaitIdle(context.Background()))
	it, ok := f.store.Item(added.ID)
	require.True(t, ok)
	assert.Equal(t, models.FileStatusPending, it.Status)
	assert.Equal(t, "image/png", it.MimeType)
	assert.NotEqual(t, added.URL, it.URL)

	content, mimeType, err := f.svc.Content(added.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("clean-png"), content)
	assert.Equal(t, "image/png", mimeType)
}

func TestIngestBinarizeFailureMarksFailed(t *testing.T) {
	f := newFixture(t, []models.AiSource{openAI("a")}, stubClients{}, stubBinarizer{err: errors.New("decode")}, true)
	res, err := f.svc.Ingest(context.Background(), []Upload{{Name: "p1.png", Content: photo(t)}}, models.SourceUpload)
	require.NoError(t, err)
	require.NoError(t, f.svc.WaitIdle(context.Background()))
	it, _ := f.store.Item(res.Added[0].ID)
	assert.Equal(t, models.FileStatusFailed, it.Status)
}

func TestScanAndExport(t *testing.T) {
	f := newFixture(t, []models.AiSource{openAI("a")}, stubClients{"a": &stubClient{reply: solved}}, nil, false)
	res, err := f.svc.Ingest(context.Background(), []Upload{{Name: "p1.png", Content: photo(t)}}, models.SourceUpload)
	require.NoError(t, err)
	id := res.Added[0].ID

	report, err := f.svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, report, f.svc.ScanStatus().Report)

	sol, err := f.svc.Solution(id)
	require.NoError(t, err)
	assert.Equal(t, models.SolutionSuccess, sol.Status)

	out, conv, err := f.svc.Export("markdown")
	require.NoError(t, err)
	assert.Equal(t, ".md", conv.Extension())
	assert.Contains(t, string(out), "x=2")

	sol, err = f.svc.UpdateProblem(id, 0, models.ProblemPatch{Answer: "x = 2", Explanation: "halve both sides"})
	require.NoError(t, err)
	assert.Equal(t, "x = 2", sol.Problems[0].Answer)
	_, err = f.svc.UpdateProblem(id, 3, models.ProblemPatch{})
	assert.ErrorIs(t, err, ErrProblemNotFound)
	_, err = f.svc.UpdateProblem("nope", 0, models.ProblemPatch{})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.Scan(context.Background())
	assert.ErrorIs(t, err, scan.ErrNothingToScan)
}

func TestStartScanIsExclusiveAndCancellable(t *testing.T) {
	client := &stubClient{reply: solved, gate: make(chan struct{})}
	f := newFixture(t, []models.AiSource{openAI("a")}, stubClients{"a": client}, nil, false)
	res, err := f.svc.Ingest(context.Background(), []Upload{{Name: "p1.png", Content: photo(t)}}, models.SourceUpload)
	require.NoError(t, err)

	require.NoError(t, f.svc.StartScan())
	assert.ErrorIs(t, f.svc.StartScan(), scan.ErrScanInProgress)
	assert.ErrorIs(t, f.svc.ClearAll(), scan.ErrScanInProgress)
	assert.True(t, f.svc.ScanStatus().Working)

	require.Eventually(t, f.svc.CancelScan, time.Second, 5*time.Millisecond)
	require.NoError(t, f.svc.WaitIdle(context.Background()))

	it, _ := f.store.Item(res.Added[0].ID)
	assert.Equal(t, models.FileStatusFailed, it.Status)
	assert.False(t, f.svc.ScanStatus().Working)
	require.NoError(t, f.svc.ClearAll())
	assert.Empty(t, f.store.Items())
}

func TestStartScanPreconditions(t *testing.T) {
	noModel := openAI("a")
	noModel.Model = ""
	f := newFixture(t, []models.AiSource{noModel}, stubClients{}, nil, false)
	assert.ErrorIs(t, f.svc.StartScan(), scan.ErrNothingToScan)

	_, err := f.svc.Ingest(context.Background(), []Upload{{Name: "p1.png", Content: photo(t)}}, models.SourceUpload)
	require.NoError(t, err)
	var target *scan.ModelNotConfiguredError
	assert.ErrorAs(t, f.svc.StartScan(), &target)
	assert.False(t, f.svc.ScanStatus().Working)
}

func TestRenameAndRemove(t *testing.T) {
	f := newFixture(t, []models.AiSource{openAI("a")}, stubClients{}, nil, false)
	res, err := f.svc.Ingest(context.Background(), []Upload{{Name: "p1.png", Content: photo(t)}}, models.SourceUpload)
	require.NoError(t, err)
	id := res.Added[0].ID

	it, err := f.svc.Rename(id, "  Chapter 3  ")
	require.NoError(t, err)
	assert.Equal(t, "Chapter 3", it.DisplayName)
	assert.Equal(t, res.Added[0].URL, it.URL)

	_, err = f.svc.Rename(id, " ")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = f.svc.Rename("missing", "x")
	assert.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, f.svc.Remove(id))
	assert.ErrorIs(t, f.svc.Remove(id), ErrItemNotFound)
}

func TestListModels(t *testing.T) {
	clients := stubClients{"a": &listingClient{}, "b": &stubClient{}}
	f := newFixture(t, []models.AiSource{openAI("a"), openAI("b")}, clients, nil, false)

	list, err := f.svc.ListModels(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", list[0].Name)

	_, err = f.svc.ListModels(context.Background(), "b")
	assert.ErrorIs(t, err, ErrModelsUnsupported)
	_, err = f.svc.ListModels(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}
