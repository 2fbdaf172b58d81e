package service

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Workers bounds how many CPU-bound image operations run at once, so resampling and encoding never
// starve the goroutines that are waiting on the network.
type Workers struct {
	sem *semaphore.Weighted
}

func NewWorkers(n int) *Workers {
	if n < 1 {
		n = runtime.NumCPU()
	}

	return &Workers{sem: semaphore.NewWeighted(int64(n))}
}

func offload[T any](ctx context.Context, w *Workers, fn func() (T, error)) (T, error) {
	var zero T
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer w.sem.Release(1)

	return fn()
}
