package port

import (
	"context"
	"imgadapt/internal/core/domain"
)

// SubmitRequest is one transformation request for the remote service.
type SubmitRequest struct {
	BatchID     string
	ImagePath   string
	Ratio       domain.Ratio
	Instruction string
}

type Transformer interface {
	// Submit sends an image for transformation and returns the remote job identifier.
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	// Poll waits for the remote job to reach a terminal state and returns its final view.
	Poll(ctx context.Context, jobID string) (domain.RemoteJob, error)
	// Download stores the referenced result image at dest.
	Download(ctx context.Context, ref string, dest string) error
}
