package domain

import "time"

// ImageDescriptor describes an image file on disk. It is recomputed whenever the file is rewritten.
type ImageDescriptor struct {
	Path   string
	Width  int
	Height int
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RemoteJob is the view of one submitted transformation as reported by the remote service.
type RemoteJob struct {
	ID          string
	SubmittedAt time.Time
	Status      JobStatus
	Progress    int
	ResultRef   string
	Error       string
}

type ItemStatus string

const (
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// ItemResult is appended once per item and never mutated afterwards.
type ItemResult struct {
	OriginalName string     `json:"original_name"`
	ProducedName string     `json:"produced_name,omitempty"`
	FilePath     string     `json:"file_path,omitempty"`
	Status       ItemStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
}

// BatchStatus is the pollable progress record of a batch.
type BatchStatus struct {
	BatchID   string       `json:"batch_id"`
	Status    JobStatus    `json:"status"`
	Total     int          `json:"total"`
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"images"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Clone returns a copy that does not share the item slice.
func (b BatchStatus) Clone() BatchStatus {
	if b.Items == nil {
		return b
	}
	items := make([]ItemResult, len(b.Items))
	copy(items, b.Items)
	b.Items = items
	return b
}

// CanTransition enforces the forward-only batch lifecycle.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobProcessing || to == JobFailed
	case JobProcessing:
		return to == JobProcessing || to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

// Item is a single saved input file of a batch.
type Item struct {
	Name string
	Path string
}
