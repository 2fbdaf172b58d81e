package remote

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/rs/zerolog/log"
)

// Simulator is an in-process stand-in for the remote service. It completes every job by echoing the
// submitted image back inline, except for images whose name contains one of the configured markers.
type Simulator struct {
	latency     time.Duration
	failMarkers []string

	mu   sync.Mutex
	seq  int
	jobs map[string]simulatedJob
}

type simulatedJob struct {
	path string
	fail bool
}

func NewSimulator(latency time.Duration, failMarkers ...string) *Simulator {
	return &Simulator{
		latency:     latency,
		failMarkers: failMarkers,
		jobs:        make(map[string]simulatedJob),
	}
}

func (s *Simulator) Submit(_ context.Context, req port.SubmitRequest) (string, error) {
	name := filepath.Base(req.ImagePath)

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("sim-%d", s.seq)
	s.jobs[id] = simulatedJob{path: req.ImagePath, fail: s.shouldFail(name)}
	s.mu.Unlock()

	log.Debug().Str("taskId", id).Str("image", name).Str("size", req.Ratio.Label).Msg("simulated submit")

	return id, nil
}

func (s *Simulator) Poll(ctx context.Context, jobID string) (domain.RemoteJob, error) {
	select {
	case <-ctx.Done():
		return domain.RemoteJob{}, ctx.Err()
	case <-time.After(s.latency):
	}

	// every poll ends the job, so its entry is dropped here
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	delete(s.jobs, jobID)
	s.mu.Unlock()

	if !ok {
		return domain.RemoteJob{}, &domain.RemoteJobError{JobID: jobID, Detail: "unknown task"}
	}

	if job.fail {
		return domain.RemoteJob{ID: jobID, Status: domain.JobFailed, Error: "simulated failure"},
			&domain.RemoteJobError{JobID: jobID, Detail: "simulated failure"}
	}

	ref, err := encodeDataURL(job.path)
	if err != nil {
		return domain.RemoteJob{}, &domain.RemoteJobError{JobID: jobID, Detail: err.Error()}
	}

	return domain.RemoteJob{ID: jobID, Status: domain.JobCompleted, Progress: 100, ResultRef: ref}, nil
}

func (s *Simulator) Download(_ context.Context, ref string, dest string) error {
	data, err := decodeDataURL(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownload, err)
	}

	if err := writeAtomic(dest, data); err != nil {
		return fmt.Errorf("%w: error writing result: %v", domain.ErrDownload, err)
	}

	return nil
}

func (s *Simulator) shouldFail(name string) bool {
	for _, marker := range s.failMarkers {
		if marker != "" && strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
