package store

import (
	"context"
	"fmt"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

// Initialize replaces the in-memory state with the records in creation
// order. Every item gets a new locator and its solution is re-keyed to it.
// Work interrupted by a previous shutdown is settled: processing items and
// solutions become failed, rasterizing items become pending.
func (s *Store) Initialize(ctx context.Context) error {
	recs, err := s.records.List(ctx)
	if err != nil {
		s.logger.Error("Failed to load records", logger.Error(err))
		return fmt.Errorf("failed to load records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]*models.FileItem, 0, len(recs))
	s.solutions = make(map[string]*models.Solution, len(recs))
	for _, rec := range recs {
		it := &models.FileItem{
			ID:          rec.ID,
			DisplayName: rec.FileName,
			MimeType:    rec.MimeType,
			URL:         s.newLocator(),
			Source:      rec.Source,
			Status:      rec.Status,
			Size:        len(rec.Blob),
			CreatedAt:   rec.CreatedAt,
			Content:     rec.Blob,
		}
		if rec.CreatedAt > s.lastCreated {
			s.lastCreated = rec.CreatedAt
		}

		settled := false
		switch it.Status {
		case models.FileStatusProcessing:
			it.Status = models.FileStatusFailed
			settled = true
		case models.FileStatusRasterizing:
			it.Status = models.FileStatusPending
			settled = true
		}

		if rec.Solution != nil {
			sol := rec.Solution.Clone()
			sol.ImageURL = it.URL
			sol.StreamedOutput = ""
			if sol.Status == models.SolutionProcessing {
				sol.Status = models.SolutionFailed
				settled = true
			}
			s.solutions[it.URL] = &sol
		}
		s.items = append(s.items, it)

		if settled {
			st := it.Status
			patch := recordstore.Patch{Status: &st}
			if sol, ok := s.solutions[it.URL]; ok {
				d := sol.Durable()
				patch.Solution = &d
			}
			s.persistPatch("settle", it, patch)
		}
	}

	s.logger.Info("Store initialized",
		logger.Int("items", len(s.items)),
		logger.Int("solutions", len(s.solutions)),
	)
	s.publish(models.Event{Type: models.EventItemsChanged})
	return nil
}
