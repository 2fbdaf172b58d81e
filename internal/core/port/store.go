package port

import (
	"context"
	"imgadapt/internal/core/domain"
)

type StatusStore interface {
	// Save upserts the record for status.BatchID.
	Save(ctx context.Context, status domain.BatchStatus) error
	// Load returns the record or domain.ErrBatchNotFound.
	Load(ctx context.Context, batchID string) (domain.BatchStatus, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, batchID string) error
}
