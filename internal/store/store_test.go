package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

type failingRecords struct {
	*recordstore.Memory
}

var errDisk = errors.New("disk full")

func (failingRecords) BulkCreate(context.Context, []recordstore.Record) error { return errDisk }
func (failingRecords) Update(context.Context, string, recordstore.Patch) error {
	return errDisk
}

func newTestStore(t *testing.T, records recordstore.Store) (*Store, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	n := 0
	s := New(records, log, WithLocatorFunc(func() string {
		n++
		return fmt.Sprintf("blob:test/%d", n)
	}))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, log
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Flush(context.Background()))
}

func page(id string) models.FileItem {
	return models.FileItem{
		ID:          id,
		DisplayName: id + ".png",
		MimeType:    "image/png",
		Content:     []byte("png-" + id),
		Source:      models.SourceUpload,
	}
}

func processing(url string) models.Solution {
	return models.Solution{ImageURL: url, Status: models.SolutionProcessing, Problems: []models.ProblemSolution{}}
}

func TestAddItemsPersistsRecords(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)

	added := s.AddItems([]models.FileItem{page("a"), page("b")})
	require.Len(t, added, 2)
	assert.Equal(t, "blob:test/1", added[0].URL)
	assert.Equal(t, models.FileStatusPending, added[0].Status)
	assert.Nil(t, added[0].Content)
	assert.Less(t, added[0].CreatedAt, added[1].CreatedAt)

	flush(t, s)
	recs, err := mem.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, []byte("png-a"), recs[0].Blob)
	assert.Equal(t, "a.png", recs[0].FileName)

	content, mime, ok := s.Content(added[1].URL)
	require.True(t, ok)
	assert.Equal(t, []byte("png-b"), content)
	assert.Equal(t, "image/png", mime)
}

func TestAddSolutionNeverOverwrites(t *testing.T) {
	s, log := newTestStore(t, recordstore.NewMemory())
	it := s.AddItems([]models.FileItem{page("a")})[0]

	first := processing(it.URL)
	first.AiSourceID = "first"
	s.AddSolution(first)

	second := processing(it.URL)
	second.AiSourceID = "second"
	second.Status = models.SolutionSuccess
	s.AddSolution(second)

	sol, ok := s.Solution(it.URL)
	require.True(t, ok)
	assert.Equal(t, "first", sol.AiSourceID)
	assert.Equal(t, models.SolutionProcessing, sol.Status)
	assert.Len(t, s.Solutions(), 1)
	assert.Equal(t, 1, log.Count("ERROR", "already exists"))
}

func TestUpdateSolutionRequiresAdd(t *testing.T) {
	s, log := newTestStore(t, recordstore.NewMemory())
	st := models.SolutionSuccess
	s.UpdateSolution("blob:test/missing", models.SolutionPatch{Status: &st})

	_, ok := s.Solution("blob:test/missing")
	assert.False(t, ok)
	assert.Equal(t, 1, log.Count("ERROR", "missing solution"))
}

func TestAddSolutionForRemovedItem(t *testing.T) {
	mem := recordstore.NewMemory()
	s, log := newTestStore(t, mem)
	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.RemoveItem(it.ID)

	s.AddSolution(processing(it.URL))
	_, ok := s.Solution(it.URL)
	assert.False(t, ok)
	assert.Equal(t, 1, log.Count("WARN", "unknown item"))

	flush(t, s)
	recs, err := mem.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSuccessClearsStreamedOutput(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.AddSolution(processing(it.URL))

	s.AppendStreamedOutput(it.URL, "partial ")
	s.AppendStreamedOutput(it.URL, "text")
	sol, _ := s.Solution(it.URL)
	assert.Equal(t, "partial text", sol.StreamedOutput)

	flush(t, s)
	rec, ok := mem.Get("a")
	require.True(t, ok)
	require.NotNil(t, rec.Solution)
	assert.Empty(t, rec.Solution.StreamedOutput, "stream must never reach the record store")

	st := models.SolutionSuccess
	src := "src-1"
	s.UpdateSolution(it.URL, models.SolutionPatch{
		Status:     &st,
		Problems:   []models.ProblemSolution{{Problem: "2+2", Answer: "4"}},
		AiSourceID: &src,
	})
	sol, _ = s.Solution(it.URL)
	assert.Empty(t, sol.StreamedOutput)
	assert.Equal(t, "src-1", sol.AiSourceID)

	flush(t, s)
	rec, _ = mem.Get("a")
	require.NotNil(t, rec.Solution)
	assert.Equal(t, models.SolutionSuccess, rec.Solution.Status)
	require.Len(t, rec.Solution.Problems, 1)
	assert.Equal(t, "4", rec.Solution.Problems[0].Answer)
}

func TestFailedStatusKeepsStreamUntilCleared(t *testing.T) {
	s, _ := newTestStore(t, recordstore.NewMemory())
	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.AddSolution(processing(it.URL))
	s.AppendStreamedOutput(it.URL, "junk")

	st := models.SolutionFailed
	s.UpdateSolution(it.URL, models.SolutionPatch{Status: &st})
	sol, _ := s.Solution(it.URL)
	assert.Equal(t, "junk", sol.StreamedOutput)

	s.ClearStreamedOutput(it.URL)
	sol, _ = s.Solution(it.URL)
	assert.Empty(t, sol.StreamedOutput)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	items := s.AddItems([]models.FileItem{page("a"), page("b")})
	s.AddSolution(processing(items[0].URL))

	s.RemoveItem("a")
	s.RemoveItem("a")
	s.RemoveItem("never-added")

	require.Len(t, s.Items(), 1)
	assert.Equal(t, "b", s.Items()[0].ID)
	_, ok := s.Solution(items[0].URL)
	assert.False(t, ok)
	_, _, ok = s.Content(items[0].URL)
	assert.False(t, ok)

	flush(t, s)
	_, ok = mem.Get("a")
	assert.False(t, ok)
	_, ok = mem.Get("b")
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	items := s.AddItems([]models.FileItem{page("a"), page("b")})
	s.AddSolution(processing(items[1].URL))

	s.ClearAll()
	assert.Empty(t, s.Items())
	assert.Empty(t, s.Solutions())

	flush(t, s)
	recs, err := mem.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRemoveSolutionsKeepsRecords(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	items := s.AddItems([]models.FileItem{page("a"), page("b")})
	s.AddSolution(processing(items[0].URL))
	s.AddSolution(processing(items[1].URL))

	s.RemoveSolutionsByURLs([]string{items[0].URL})
	_, ok := s.Solution(items[0].URL)
	assert.False(t, ok)
	_, ok = s.Solution(items[1].URL)
	assert.True(t, ok)

	flush(t, s)
	rec, ok := mem.Get("a")
	require.True(t, ok)
	assert.Nil(t, rec.Solution)
	rec, _ = mem.Get("b")
	assert.NotNil(t, rec.Solution)

	s.ClearAllSolutions()
	assert.Empty(t, s.Solutions())
	assert.Len(t, s.Items(), 2)
	flush(t, s)
	rec, _ = mem.Get("b")
	assert.Nil(t, rec.Solution)
}

func TestUpdateItemPersistsOnlyStatus(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	s.AddItems([]models.FileItem{page("a")})

	name := "renamed-in-memory.png"
	st := models.FileStatusSuccess
	s.UpdateItem("a", models.ItemPatch{Status: &st, DisplayName: &name})
	s.UpdateItem("unknown", models.StatusPatch(models.FileStatusFailed))

	it, _ := s.Item("a")
	assert.Equal(t, name, it.DisplayName)
	assert.Equal(t, models.FileStatusSuccess, it.Status)

	flush(t, s)
	rec, _ := mem.Get("a")
	assert.Equal(t, models.FileStatusSuccess, rec.Status)
	assert.Equal(t, "a.png", rec.FileName)
}

func TestRenameItemPersistsFileName(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.AddSolution(processing(it.URL))

	s.RenameItem("a", "math.png")
	got, _ := s.Item("a")
	assert.Equal(t, "math.png", got.DisplayName)
	assert.Equal(t, it.URL, got.URL)
	_, ok := s.Solution(it.URL)
	assert.True(t, ok)

	flush(t, s)
	rec, _ := mem.Get("a")
	assert.Equal(t, "math.png", rec.FileName)
}

func TestReplaceContentRekeysSolution(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.AddSolution(processing(it.URL))

	s.ReplaceContent("a", []byte("binarized"), "image/png", models.FileStatusPending)
	got, _ := s.Item("a")
	assert.NotEqual(t, it.URL, got.URL)
	_, ok := s.Solution(it.URL)
	assert.False(t, ok)
	sol, ok := s.Solution(got.URL)
	require.True(t, ok)
	assert.Equal(t, got.URL, sol.ImageURL)

	content, _, _ := s.Content(got.URL)
	assert.Equal(t, []byte("binarized"), content)

	flush(t, s)
	rec, _ := mem.Get("a")
	assert.Equal(t, []byte("binarized"), rec.Blob)
}

func TestUpdateProblemGuardsIndex(t *testing.T) {
	s, log := newTestStore(t, recordstore.NewMemory())
	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.AddSolution(models.Solution{
		ImageURL: it.URL,
		Status:   models.SolutionSuccess,
		Problems: []models.ProblemSolution{{Problem: "1+1", Answer: "3"}},
	})

	assert.False(t, s.UpdateProblem(it.URL, 5, models.ProblemPatch{Answer: "x"}))
	assert.False(t, s.UpdateProblem(it.URL, -1, models.ProblemPatch{Answer: "x"}))
	assert.False(t, s.UpdateProblem("blob:test/none", 0, models.ProblemPatch{Answer: "x"}))
	assert.Equal(t, 2, log.Count("WARN", "out of range"))

	ok := s.UpdateProblem(it.URL, 0, models.ProblemPatch{
		Answer:      "2",
		Explanation: "one plus one",
		Steps:       []models.ExplanationStep{{Title: "add", Content: "1+1=2"}},
	})
	require.True(t, ok)
	sol, _ := s.Solution(it.URL)
	assert.Equal(t, "1+1", sol.Problems[0].Problem)
	assert.Equal(t, "2", sol.Problems[0].Answer)
	assert.Len(t, sol.Problems[0].Steps, 1)
}

func TestPersistenceFailureIsLoggedNotSurfaced(t *testing.T) {
	s, log := newTestStore(t, failingRecords{recordstore.NewMemory()})

	items := s.AddItems([]models.FileItem{page("a")})
	s.UpdateItem("a", models.StatusPatch(models.FileStatusProcessing))
	flush(t, s)

	it, ok := s.Item("a")
	require.True(t, ok)
	assert.Equal(t, items[0].URL, it.URL)
	assert.Equal(t, models.FileStatusProcessing, it.Status)
	assert.Equal(t, 2, log.Count("ERROR", "Persistence task failed"))
}

func TestMissingRecordIsRecreated(t *testing.T) {
	mem := recordstore.NewMemory()
	s, _ := newTestStore(t, mem)
	s.AddItems([]models.FileItem{page("a")})
	flush(t, s)
	require.NoError(t, mem.Delete(context.Background(), "a"))

	s.UpdateItem("a", models.StatusPatch(models.FileStatusFailed))
	flush(t, s)

	rec, ok := mem.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.FileStatusFailed, rec.Status)
	assert.Equal(t, []byte("png-a"), rec.Blob)
}

func TestInitializeRegeneratesLocators(t *testing.T) {
	ctx := context.Background()
	mem := recordstore.NewMemory()
	require.NoError(t, mem.BulkCreate(ctx, []recordstore.Record{
		{
			ID: "second", FileName: "2.png", MimeType: "image/png", Blob: []byte("2"),
			Source: models.SourceCamera, Status: models.FileStatusSuccess, CreatedAt: 200,
			Solution: &models.Solution{
				ImageURL: "blob:old-session/2",
				Status:   models.SolutionSuccess,
				Problems: []models.ProblemSolution{{Problem: "p", Answer: "a"}},
			},
		},
		{
			ID: "first", FileName: "1.png", MimeType: "image/png", Blob: []byte("1"),
			Source: models.SourceUpload, Status: models.FileStatusProcessing, CreatedAt: 100,
			Solution: &models.Solution{ImageURL: "blob:old-session/1", Status: models.SolutionProcessing},
		},
		{
			ID: "third", FileName: "3.png", MimeType: "image/png", Blob: []byte("3"),
			Status: models.FileStatusRasterizing, CreatedAt: 300,
		},
	}))

	s, _ := newTestStore(t, mem)
	require.NoError(t, s.Initialize(ctx))

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, models.FileStatusFailed, items[0].Status)
	assert.Equal(t, models.FileStatusSuccess, items[1].Status)
	assert.Equal(t, models.FileStatusPending, items[2].Status)

	sol, ok := s.Solution(items[1].URL)
	require.True(t, ok)
	assert.Equal(t, items[1].URL, sol.ImageURL)
	assert.Equal(t, "a", sol.Problems[0].Answer)
	_, ok = s.Solution("blob:old-session/2")
	assert.False(t, ok)

	sol, ok = s.Solution(items[0].URL)
	require.True(t, ok)
	assert.Equal(t, models.SolutionFailed, sol.Status)

	content, _, ok := s.Content(items[0].URL)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), content)

	flush(t, s)
	rec, _ := mem.Get("first")
	assert.Equal(t, models.FileStatusFailed, rec.Status)
	assert.Equal(t, models.SolutionFailed, rec.Solution.Status)

	added := s.AddItems([]models.FileItem{page("fourth")})
	assert.Greater(t, added[0].CreatedAt, int64(300))
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s, _ := newTestStore(t, recordstore.NewMemory())
	events, cancel := s.Subscribe(16)
	defer cancel()

	it := s.AddItems([]models.FileItem{page("a")})[0]
	s.AddSolution(processing(it.URL))
	s.AppendStreamedOutput(it.URL, "hi")

	assert.Equal(t, models.EventItemsChanged, (<-events).Type)
	assert.Equal(t, models.EventSolutionChanged, (<-events).Type)
	ev := <-events
	assert.Equal(t, models.EventStreamChunk, ev.Type)
	assert.Equal(t, "hi", ev.Chunk)

	cancel()
	_, open := <-events
	assert.False(t, open)
}
