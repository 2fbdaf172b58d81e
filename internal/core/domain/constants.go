package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrAdaptation      = errors.New("image adaptation failed")
	ErrSubmission      = errors.New("submission rejected")
	ErrRemoteJobFailed = errors.New("remote job failed")
	ErrPollTimeout     = errors.New("remote job timed out")
	ErrDownload        = errors.New("result download failed")
	ErrRestoration     = errors.New("ratio restoration failed")
	ErrBatchNotFound   = errors.New("batch not found")
)

// RemoteJobError carries the failure detail reported by the remote service.
type RemoteJobError struct {
	JobID  string
	Detail string
}

func (e *RemoteJobError) Error() string {
	return fmt.Sprintf("remote job %s failed: %s", e.JobID, e.Detail)
}

func (e *RemoteJobError) Is(target error) bool {
	return target == ErrRemoteJobFailed
}
