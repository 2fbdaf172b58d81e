package service

import (
	"context"
	"sync"
	"time"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/rs/zerolog/log"
)

// batchRecord owns one batch's status. Every mutation is persisted under the same lock, so the stored
// record only ever moves forward.
type batchRecord struct {
	mu     sync.Mutex
	status domain.BatchStatus
	store  port.StatusStore
}

func newBatchRecord(batchID string, total int, store port.StatusStore) *batchRecord {
	return &batchRecord{
		status: domain.BatchStatus{
			BatchID: batchID,
			Status:  domain.JobPending,
			Total:   total,
			Items:   []domain.ItemResult{},
		},
		store: store,
	}
}

func (b *batchRecord) save(ctx context.Context) {
	b.status.UpdatedAt = time.Now().UTC()
	if err := b.store.Save(ctx, b.status); err != nil {
		log.Error().Err(err).Str("batchId", b.status.BatchID).Msg("could not persist batch status")
	}
}

// publish writes the initial pending record.
func (b *batchRecord) publish(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.save(ctx)
}

func (b *batchRecord) transition(ctx context.Context, to domain.JobStatus, reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !domain.CanTransition(b.status.Status, to) {
		log.Warn().
			Str("batchId", b.status.BatchID).
			Str("from", string(b.status.Status)).
			Str("to", string(to)).
			Msg("ignoring backward batch transition")
		return false
	}

	b.status.Status = to
	if reason != "" {
		b.status.Error = reason
	}
	b.save(ctx)
	return true
}

func (b *batchRecord) record(ctx context.Context, result domain.ItemResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status.Processed >= b.status.Total {
		log.Warn().Str("batchId", b.status.BatchID).Msg("dropping result beyond batch total")
		return
	}

	b.status.Items = append(b.status.Items, result)
	b.status.Processed++
	if result.Status == domain.ItemSuccess {
		b.status.Succeeded++
	} else {
		b.status.Failed++
	}
	b.save(ctx)
}

func (b *batchRecord) snapshot() domain.BatchStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.status.Clone()
}
