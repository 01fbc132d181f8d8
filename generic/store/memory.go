// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/points-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	records     map[generic.EntityID][]generic.Record
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		records:     make(map[generic.EntityID][]generic.Record),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single record. Append-only.
func (m *Memory) Append(_ context.Context, rec generic.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.IdempotencyKey != "" && m.idempotency[rec.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(rec)
	return nil
}

// AppendBatch adds multiple records atomically.
func (m *Memory) AppendBatch(_ context.Context, recs []generic.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	batch := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if rec.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[rec.IdempotencyKey] || batch[rec.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		batch[rec.IdempotencyKey] = true
	}

	for _, rec := range recs {
		m.appendLocked(rec)
	}
	return nil
}

func (m *Memory) appendLocked(rec generic.Record) {
	m.records[rec.EntityID] = append(m.records[rec.EntityID], rec)
	if rec.IdempotencyKey != "" {
		m.idempotency[rec.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, entityID generic.EntityID) ([]generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Record, len(m.records[entityID]))
	copy(result, m.records[entityID])
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// FindOnDay implements generic.DayIndex with a linear scan.
func (m *Memory) FindOnDay(_ context.Context, entityID generic.EntityID, kind string, day generic.TimePoint) (generic.RecordID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records[entityID] {
		if rec.Kind != kind {
			continue
		}
		d, err := rec.Date()
		if err == nil && d.Equal(day) {
			return rec.ID, true, nil
		}
	}
	return "", false, nil
}
