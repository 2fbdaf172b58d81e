package main

import (
	"context"
	"fmt"

	"imgadapt/internal/adapters/file"
	"imgadapt/internal/adapters/imaging"
	"imgadapt/internal/adapters/remote"
	"imgadapt/internal/adapters/store"
	"imgadapt/internal/config"
	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"
	"imgadapt/internal/core/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg       config.Config
	store     port.StatusStore
	workspace *file.Workspace
	scheduler *service.Scheduler
	closeFn   func() error
}

func loadConfig(configDir string) (config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), configDir)
	if err != nil {
		return config.Config{}, err
	}

	var logLevel zerolog.Level

	switch cfg.App.LogLevel {
	case "info":
		logLevel = zerolog.InfoLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (port.StatusStore, func() error, error) {
	return store.Open(ctx, store.Options{
		Backend:     store.Backend(cfg.Store.Backend),
		Path:        cfg.Store.Path,
		RedisURL:    cfg.Store.RedisURL,
		RedisPrefix: cfg.Store.RedisPrefix,
		TTL:         cfg.Store.TTL,
	})
}

// newApp wires the pipeline and scheduler. ctx is the lifetime of background batches.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	ratios, err := domain.RatioTable(cfg.Remote.RatioTable)
	if err != nil {
		return nil, err
	}

	statusStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening status store %w", err)
	}

	workspace, err := file.NewWorkspace(cfg.App.TempRoot)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	transformer := remote.NewTransformer(remote.Mode(cfg.Remote.Mode), remote.Config{
		Endpoint:         cfg.Remote.Endpoint,
		APIKey:           cfg.Remote.APIKey,
		Model:            cfg.Remote.Model,
		Transport:        remote.Transport(cfg.Remote.Transport),
		BaseURL:          cfg.App.BaseURL,
		PollInterval:     cfg.Remote.PollInterval,
		PollMaxAttempts:  cfg.Remote.PollMaxAttempts,
		RequestTimeout:   cfg.Remote.RequestTimeout,
		RetryAttempts:    cfg.Remote.RetryAttempts,
		DownloadAttempts: cfg.Remote.DownloadAttempts,
		RetryBackoff:     cfg.Remote.RetryBackoff,
	}, cfg.Remote.SimLatency, cfg.Remote.SimFailMarkers...)

	pipeline := service.NewPipeline(transformer,
		imaging.NewConverter(),
		service.NewWorkers(cfg.Batch.CPUWorkers),
		ratios,
		cfg.Remote.Prompt)

	scheduler := service.NewScheduler(ctx, pipeline, statusStore, workspace, service.SchedulerConfig{
		Concurrency: cfg.Batch.Concurrency,
		StaggerMin:  cfg.Batch.StaggerMin,
		StaggerMax:  cfg.Batch.StaggerMax,
		Retention:   cfg.Batch.Retention,
	})

	log.Info().
		Str("remote", cfg.Remote.Mode).
		Str("store", cfg.Store.Backend).
		Int("concurrency", cfg.Batch.Concurrency).
		Msg("engine ready")

	return &app{
		cfg:       cfg,
		store:     statusStore,
		workspace: workspace,
		scheduler: scheduler,
		closeFn:   closeStore,
	}, nil
}

func (a *app) Close() error {
	a.scheduler.Close()
	return a.closeFn()
}
