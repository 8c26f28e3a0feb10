package homework

import (
	"context"

	"github.com/google/uuid"

	"github.com/yangshenhuai/skid-homework/internal/agent/document/image"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/utils/validator"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// Upload is one named file handed to Ingest
type Upload = validator.Upload

// Rejection explains why one upload was not ingested
type Rejection struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type IngestResult struct {
	Added    []models.FileItem `json:"added"`
	Rejected []Rejection       `json:"rejected,omitempty"`
}

// Ingest validates uploads and adds the accepted ones as pending items.
// Rejections are reported per file; the rest of the batch is still added.
// With binarization on, images enter rasterizing and are cleaned up in the
// background.
func (s *Service) Ingest(ctx context.Context, files []Upload, source models.FileSource) (*IngestResult, error) {
	if len(files) == 0 {
		return nil, ErrNothingToIngest
	}
	if source == "" {
		source = models.SourceUpload
	}
	if !source.Valid() {
		return nil, ErrInvalidSource
	}

	results := s.validator.ValidateFiles(ctx, files, validator.Options{AllowPDF: s.pdfReadable()})
	res := &IngestResult{}
	var items []models.FileItem
	for i, r := range results {
		if !r.IsValid {
			e := r.Errors[0]
			res.Rejected = append(res.Rejected, Rejection{Name: files[i].Name, Code: e.Code, Message: e.Message})
			continue
		}
		status := models.FileStatusPending
		if s.shouldBinarize(r.FileInfo.MimeType) {
			status = models.FileStatusRasterizing
		}
		items = append(items, models.FileItem{
			ID:          uuid.NewString(),
			DisplayName: files[i].Name,
			MimeType:    r.FileInfo.MimeType,
			Source:      source,
			Status:      status,
			Content:     files[i].Content,
		})
	}
	if len(items) == 0 {
		return res, ErrAllUploadsRejected
	}

	contents := make(map[string][]byte, len(items))
	for _, it := range items {
		contents[it.ID] = it.Content
	}
	res.Added = s.store.AddItems(items)
	for _, it := range res.Added {
		if it.Status != models.FileStatusRasterizing {
			continue
		}
		content := contents[it.ID]
		id := it.ID
		if !s.goBackground(func(ctx context.Context) { s.binarize(ctx, id, content) }) {
			s.store.UpdateItem(id, models.StatusPatch(models.FileStatusPending))
		}
	}

	s.logger.Info("Files ingested",
		logger.Int("added", len(res.Added)),
		logger.Int("rejected", len(res.Rejected)),
		logger.String("source", string(source)),
	)
	return res, nil
}

func (s *Service) shouldBinarize(mimeType string) bool {
	return s.cfg.Binarize && s.binarizer != nil && s.binarizer.CanProcess(mimeType)
}

func (s *Service) binarize(ctx context.Context, id string, content []byte) {
	out, err := s.binarizer.Binarize(ctx, content)
	if err != nil {
		s.logger.Error("Binarization failed", logger.String("item", id), logger.Error(err))
		s.store.UpdateItem(id, models.StatusPatch(models.FileStatusFailed))
		return
	}
	s.store.ReplaceContent(id, out, image.OutputMimeType, models.FileStatusPending)
}
