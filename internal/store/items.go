package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

// AddItems appends items and persists one record per item with the given
// status. Missing ids, locators and timestamps are filled in. The stored
// items are returned without content.
func (s *Store) AddItems(items []models.FileItem) []models.FileItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]models.FileItem, 0, len(items))
	recs := make([]recordstore.Record, 0, len(items))
	for _, in := range items {
		it := in.Clone()
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if s.indexOf(it.ID) >= 0 {
			s.logger.Error("Item already exists", logger.String("id", it.ID))
			continue
		}
		if it.URL == "" || s.itemByURL(it.URL) != nil {
			it.URL = s.newLocator()
		}
		if it.Status == "" {
			it.Status = models.FileStatusPending
		}
		if it.Source == "" {
			it.Source = models.SourceUpload
		}
		if it.CreatedAt == 0 || it.CreatedAt <= s.lastCreated {
			it.CreatedAt = s.nextCreatedAt()
		} else {
			s.lastCreated = it.CreatedAt
		}
		it.Size = len(it.Content)

		s.items = append(s.items, &it)
		recs = append(recs, s.recordOf(&it))
		added = append(added, it.WithoutContent())
	}
	if len(recs) == 0 {
		return added
	}

	s.enqueue("bulkCreate", recs[0].ID, func(ctx context.Context) error {
		return s.records.BulkCreate(ctx, recs)
	})
	s.publish(models.Event{Type: models.EventItemsChanged})
	return added
}

// UpdateItem merges patch into the item. Only the status reaches the
// record store. Unknown ids are ignored.
func (s *Store) UpdateItem(id string, patch models.ItemPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	it := s.items[i]
	if patch.DisplayName != nil {
		it.DisplayName = *patch.DisplayName
	}
	if patch.Status != nil {
		it.Status = *patch.Status
		st := it.Status
		s.persistPatch("updateStatus", it, recordstore.Patch{Status: &st})
	}
	s.publish(models.Event{Type: models.EventItemsChanged, ItemID: id, URL: it.URL})
}

// RenameItem changes the display name and persists it as the file name.
// The locator and any solution are kept.
func (s *Store) RenameItem(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	it := s.items[i]
	it.DisplayName = name
	s.persistPatch("rename", it, recordstore.Patch{FileName: &name})
	s.publish(models.Event{Type: models.EventItemsChanged, ItemID: id, URL: it.URL})
}

// ReplaceContent swaps the item's binary content, issues a new locator and
// moves any solution to it. Content, MIME type and status are persisted.
func (s *Store) ReplaceContent(id string, content []byte, mimeType string, status models.FileStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	it := s.items[i]
	oldURL := it.URL
	it.Content = append([]byte(nil), content...)
	it.Size = len(it.Content)
	it.MimeType = mimeType
	it.Status = status
	it.URL = s.newLocator()
	if sol, ok := s.solutions[oldURL]; ok {
		delete(s.solutions, oldURL)
		sol.ImageURL = it.URL
		s.solutions[it.URL] = sol
	}

	mime := mimeType
	st := status
	s.persistPatch("replaceContent", it, recordstore.Patch{Blob: it.Content, MimeType: &mime, Status: &st})
	s.publish(models.Event{Type: models.EventItemsChanged, ItemID: id, URL: it.URL})
}

// RemoveItem releases the locator and deletes the item, its solution and
// its record. Removing an unknown id does nothing.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	it := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.solutions, it.URL)

	s.enqueue("delete", id, func(ctx context.Context) error {
		return s.records.Delete(ctx, id)
	})
	s.publish(models.Event{Type: models.EventItemsChanged, ItemID: id, URL: it.URL})
}

// ClearAll drops every item and solution and truncates the record store
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.solutions = make(map[string]*models.Solution)
	s.enqueue("clear", "*", func(ctx context.Context) error {
		return s.records.Clear(ctx)
	})
	s.publish(models.Event{Type: models.EventItemsChanged})
}

// Items returns every item in insertion order, without content
func (s *Store) Items() []models.FileItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.WithoutContent()
	}
	return out
}

func (s *Store) Item(id string) (models.FileItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i].WithoutContent(), true
	}
	return models.FileItem{}, false
}

func (s *Store) ItemByURL(url string) (models.FileItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if it := s.itemByURL(url); it != nil {
		return it.WithoutContent(), true
	}
	return models.FileItem{}, false
}

// Content dereferences a locator to a copy of the item's bytes and MIME type
func (s *Store) Content(url string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.itemByURL(url)
	if it == nil {
		return nil, "", false
	}
	return append([]byte(nil), it.Content...), it.MimeType, true
}
