// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[string]generic.Record
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]generic.Record),
		now:     time.Now,
	}
}

var _ generic.RecordStore = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, id string) (generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return generic.Record{}, generic.ErrEntityNotFound
	}
	return clone(rec), nil
}

func (m *Memory) List(_ context.Context) ([]generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Record, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, clone(rec))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) Create(_ context.Context, id string, data []byte) (generic.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; exists {
		return generic.Record{}, generic.ErrDuplicateRecord
	}
	now := m.now().UTC()
	rec := generic.Record{ID: id, Version: 1, Data: append([]byte(nil), data...), CreatedAt: now, UpdatedAt: now}
	m.records[id] = rec
	return clone(rec), nil
}

// Update is a compare-and-swap on the version.
func (m *Memory) Update(_ context.Context, id string, expectedVersion int64, data []byte) (generic.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return generic.Record{}, generic.ErrEntityNotFound
	}
	if rec.Version != expectedVersion {
		return generic.Record{}, generic.ErrConcurrentModification
	}
	rec.Version++
	rec.Data = append([]byte(nil), data...)
	rec.UpdatedAt = m.now().UTC()
	m.records[id] = rec
	return clone(rec), nil
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]generic.Record)
	return nil
}

func clone(rec generic.Record) generic.Record {
	rec.Data = append([]byte(nil), rec.Data...)
	return rec
}
