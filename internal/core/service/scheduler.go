package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"
)

type SchedulerConfig struct {
	// Concurrency caps how many items are in their network-bound phase at once.
	Concurrency int
	// Item i starts after i * uniform(StaggerMin, StaggerMax).
	StaggerMin time.Duration
	StaggerMax time.Duration
	// Retention is how long artifacts and status survive after a batch finishes.
	Retention time.Duration
}

// Scheduler fans batches out over a Processor under a shared concurrency gate and keeps their status
// in a StatusStore.
type Scheduler struct {
	processor Processor
	store     port.StatusStore
	workspace port.Workspace
	cfg       SchedulerConfig
	gate      *semaphore.Weighted
	jitter    func() float64

	// base is the context async batches run under; it outlives the submitting request.
	base    context.Context
	running conc.WaitGroup

	mu       sync.Mutex
	cleanups map[string]*time.Timer
}

func NewScheduler(ctx context.Context,
	processor Processor,
	store port.StatusStore,
	workspace port.Workspace,
	cfg SchedulerConfig) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.StaggerMax < cfg.StaggerMin {
		cfg.StaggerMax = cfg.StaggerMin
	}

	return &Scheduler{
		processor: processor,
		store:     store,
		workspace: workspace,
		cfg:       cfg,
		gate:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		jitter:    rand.Float64,
		base:      ctx,
		cleanups:  make(map[string]*time.Timer),
	}
}

// Process runs a batch synchronously: intake, all items, then scheduled cleanup.
func (s *Scheduler) Process(ctx context.Context, uploads []port.Upload, mode domain.Mode) (domain.BatchStatus, error) {
	batchID, items, err := s.intake(ctx, uploads)
	if err != nil {
		return domain.BatchStatus{}, err
	}

	record := newBatchRecord(batchID, len(items), s.store)
	record.publish(ctx)

	status := s.execute(ctx, record, items, mode)
	s.scheduleCleanup(batchID)

	return status, nil
}

// Submit starts a batch in the background and returns its identifier as soon as the uploads are saved.
func (s *Scheduler) Submit(ctx context.Context, uploads []port.Upload, mode domain.Mode) (string, error) {
	batchID, items, err := s.intake(ctx, uploads)
	if err != nil {
		return "", err
	}

	record := newBatchRecord(batchID, len(items), s.store)
	record.publish(ctx)

	s.running.Go(func() {
		s.execute(s.base, record, items, mode)
		s.scheduleCleanup(batchID)
	})

	return batchID, nil
}

// Run processes already-saved items under batchID without any intake or cleanup.
func (s *Scheduler) Run(ctx context.Context, batchID string, items []domain.Item, mode domain.Mode) (domain.BatchStatus, error) {
	if len(items) == 0 {
		return domain.BatchStatus{}, fmt.Errorf("%w: empty batch", domain.ErrValidation)
	}

	record := newBatchRecord(batchID, len(items), s.store)
	record.publish(ctx)

	return s.execute(ctx, record, items, mode), nil
}

// Status returns the current snapshot of a batch or domain.ErrBatchNotFound.
func (s *Scheduler) Status(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	return s.store.Load(ctx, batchID)
}

// Purge removes a finished batch before its retention window ends.
func (s *Scheduler) Purge(ctx context.Context, batchID string) error {
	status, err := s.store.Load(ctx, batchID)
	if err != nil {
		return err
	}
	if !status.Status.Terminal() {
		return fmt.Errorf("%w: batch %s is still %s", domain.ErrValidation, batchID, status.Status)
	}

	s.mu.Lock()
	if timer, ok := s.cleanups[batchID]; ok {
		timer.Stop()
		delete(s.cleanups, batchID)
	}
	s.mu.Unlock()

	return s.cleanup(ctx, batchID)
}

// Wait blocks until every background batch has finished.
func (s *Scheduler) Wait() {
	s.running.Wait()
}

// Close waits for background batches and cancels pending cleanups.
func (s *Scheduler) Close() {
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.cleanups {
		timer.Stop()
		delete(s.cleanups, id)
	}
}

func (s *Scheduler) intake(ctx context.Context, uploads []port.Upload) (string, []domain.Item, error) {
	if len(uploads) == 0 {
		return "", nil, fmt.Errorf("%w: no files in batch", domain.ErrValidation)
	}

	batchID, err := s.workspace.NewBatch()
	if err != nil {
		return "", nil, err
	}

	items, err := s.workspace.Save(ctx, batchID, uploads)
	if err == nil && len(items) == 0 {
		err = fmt.Errorf("%w: no file could be saved", domain.ErrValidation)
	}
	if err != nil {
		log.Error().Err(err).Str("batchId", batchID).Msg("batch intake failed")
		if cleanupErr := s.workspace.Cleanup(batchID); cleanupErr != nil {
			log.Warn().Err(cleanupErr).Str("batchId", batchID).Msg("could not clean up after failed intake")
		}
		return "", nil, err
	}

	log.Info().Str("batchId", batchID).Int("files", len(items)).Msg("batch accepted")

	return batchID, items, nil
}

func (s *Scheduler) execute(ctx context.Context, record *batchRecord, items []domain.Item, mode domain.Mode) domain.BatchStatus {
	batchID := record.snapshot().BatchID
	l := log.With().Str("batchId", batchID).Int("total", len(items)).Logger()

	record.transition(ctx, domain.JobProcessing, "")
	l.Info().Str("mode", mode.String()).Msg("processing batch")

	var wg conc.WaitGroup
	for i, item := range items {
		delay := s.stagger(i)
		wg.Go(func() {
			record.record(ctx, s.processItem(ctx, batchID, item, mode, delay))
		})
	}
	wg.Wait()

	final := record.snapshot()
	if final.Succeeded == 0 {
		record.transition(ctx, domain.JobFailed, "all items failed")
	} else {
		record.transition(ctx, domain.JobCompleted, "")
	}

	final = record.snapshot()
	l.Info().
		Int("succeeded", final.Succeeded).
		Int("failed", final.Failed).
		Str("status", string(final.Status)).
		Msg("batch finished")

	return final
}

// processItem waits out the stagger delay, then holds a gate slot for the whole pipeline run.
func (s *Scheduler) processItem(ctx context.Context, batchID string, item domain.Item, mode domain.Mode, delay time.Duration) domain.ItemResult {
	failed := func(err error) domain.ItemResult {
		return domain.ItemResult{OriginalName: item.Name, Status: domain.ItemFailed, Error: err.Error()}
	}

	if delay > 0 {
		log.Debug().Str("batchId", batchID).Str("item", item.Name).Dur("delay", delay).Msg("staggering item")
		select {
		case <-ctx.Done():
			return failed(ctx.Err())
		case <-time.After(delay):
		}
	}

	if err := s.gate.Acquire(ctx, 1); err != nil {
		return failed(err)
	}
	defer s.gate.Release(1)

	return s.processor.Process(ctx, Job{
		BatchID:   batchID,
		Item:      item,
		Mode:      mode,
		OutputDir: s.workspace.OutputDir(batchID),
	})
}

func (s *Scheduler) stagger(i int) time.Duration {
	span := s.cfg.StaggerMax - s.cfg.StaggerMin
	step := s.cfg.StaggerMin + time.Duration(float64(span)*s.jitter())
	return time.Duration(i) * step
}

func (s *Scheduler) scheduleCleanup(batchID string) {
	if s.cfg.Retention <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debug().Str("batchId", batchID).Dur("retention", s.cfg.Retention).Msg("scheduling cleanup")

	s.cleanups[batchID] = time.AfterFunc(s.cfg.Retention, func() {
		s.mu.Lock()
		delete(s.cleanups, batchID)
		s.mu.Unlock()

		if err := s.cleanup(context.Background(), batchID); err != nil {
			log.Warn().Err(err).Str("batchId", batchID).Msg("scheduled cleanup failed")
		}
	})
}

func (s *Scheduler) cleanup(ctx context.Context, batchID string) error {
	var errs []error
	if err := s.workspace.Cleanup(batchID); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Delete(ctx, batchID); err != nil {
		errs = append(errs, err)
	}

	log.Info().Str("batchId", batchID).Msg("batch cleaned up")

	return errors.Join(errs...)
}
