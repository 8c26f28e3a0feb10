package recordstore

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps records in a map; used by tests and the headless worker
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	seq     map[string]uint64
	next    uint64
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		seq:     make(map[string]uint64),
	}
}

func (m *Memory) Create(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(rec)
	return nil
}

func (m *Memory) BulkCreate(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.put(rec)
	}
	return nil
}

func (m *Memory) put(rec Record) {
	if rec.Blob != nil {
		rec.Blob = append([]byte(nil), rec.Blob...)
	}
	if rec.Solution != nil {
		s := rec.Solution.Durable()
		rec.Solution = &s
	}
	if _, ok := m.seq[rec.ID]; !ok {
		m.next++
		m.seq[rec.ID] = m.next
	}
	m.records[rec.ID] = rec
}

func (m *Memory) Update(_ context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(&rec)
	m.records[id] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	delete(m.seq, id)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	m.seq = make(map[string]uint64)
	return nil
}

func (m *Memory) ClearSolutions(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		rec.Solution = nil
		m.records[id] = rec
	}
	return nil
}

func (m *Memory) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Solution != nil {
			s := rec.Solution.Clone()
			rec.Solution = &s
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

// Get returns one record; not part of Store
func (m *Memory) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok
}

func (m *Memory) Close() error { return nil }
