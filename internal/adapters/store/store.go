package store

import (
	"context"
	"fmt"
	"time"

	"imgadapt/internal/core/port"
)

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
)

type Options struct {
	Backend     Backend
	Path        string
	RedisURL    string
	RedisPrefix string
	TTL         time.Duration
}

// Open builds the configured backend. The returned close function is always safe to call.
func Open(ctx context.Context, opts Options) (port.StatusStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), noop, nil
	case BackendFile:
		s, err := NewJSONFile(opts.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendRedis:
		s, err := NewRedis(ctx, opts.RedisURL, opts.RedisPrefix, opts.TTL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendSQLite:
		s, err := NewSQLite(ctx, opts.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown status store backend %q", opts.Backend)
	}
}
