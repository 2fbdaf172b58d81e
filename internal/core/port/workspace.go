package port

import (
	"context"
	"imgadapt/internal/core/domain"
	"io"
)

// Upload is one blob received from a caller.
type Upload struct {
	Name string
	Body io.Reader
}

type Workspace interface {
	// NewBatch allocates an identifier and its input/output directories.
	NewBatch() (string, error)
	// Save stores uploads for a batch. A returned item is fully written; failed uploads are skipped.
	Save(ctx context.Context, batchID string, uploads []Upload) ([]domain.Item, error)
	// OutputDir is where results for the batch are written.
	OutputDir(batchID string) string
	// Cleanup removes every artifact of the batch. Repeated calls are a no-op.
	Cleanup(batchID string) error
}
