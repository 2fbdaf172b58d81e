// Package store holds the Job Status Store backends. Each backend upserts whole records keyed by
// batch id; a batch's record has exactly one writer.
package store

import (
	"context"
	"sync"

	"imgadapt/internal/core/domain"
)

type Memory struct {
	mu      sync.RWMutex
	records map[string]domain.BatchStatus
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.BatchStatus)}
}

func (m *Memory) Save(_ context.Context, status domain.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[status.BatchID] = status.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, batchID string) (domain.BatchStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.records[batchID]
	if !ok {
		return domain.BatchStatus{}, domain.ErrBatchNotFound
	}

	return status.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, batchID)
	return nil
}
