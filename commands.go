package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"imgadapt/internal/adapters/handler"
	"imgadapt/internal/adapters/store"
	"imgadapt/internal/config"
	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:           "imgadapt",
		Short:         "Aspect-ratio preserving batch image transformation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "Directory containing config.toml")

	rootCmd.AddCommand(newRunCommand(&configDir))
	rootCmd.AddCommand(newServeCommand(&configDir))
	rootCmd.AddCommand(newStatusCommand(&configDir))

	return rootCmd
}

func newRunCommand(configDir *string) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "run <files...>",
		Short: "Process files as one batch and wait for the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseMode(modeFlag)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*configDir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			uploads, closeFiles, err := openUploads(args)
			if err != nil {
				return err
			}
			defer closeFiles()

			status, err := a.scheduler.Process(ctx, uploads, mode)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderBatch(status, a.workspace.OutputDir(status.BatchID)))

			if status.Status == domain.JobFailed {
				return fmt.Errorf("batch %s failed: %s", status.BatchID, status.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(domain.ModeOriginal), "original, ozon_3_4 or forced:<w>:<h>")

	return cmd
}

func newServeCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept batches over HTTP and process them in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configDir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(ctx, cfg, handler.NewHTTP(a.scheduler, a.workspace, cfg.HTTP.MaxUploadBytes).Router())
		},
	}
}

func serve(ctx context.Context, cfg config.Config, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.HTTP.Listen).Msg("http surface listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newStatusCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Show the stored status of a batch",
		Long: "Show the stored status of a batch.\n\n" +
			"Reads the configured status store, so it only sees batches of another process when\n" +
			"store.backend is file, redis or sqlite. The memory backend is private to one process.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configDir)
			if err != nil {
				return err
			}
			if err := requireSharedStore(cfg); err != nil {
				return err
			}

			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			status, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderBatch(status, filepath.Join(cfg.App.TempRoot, status.BatchID, "output")))
			return nil
		},
	}
}

// requireSharedStore rejects backends another process cannot read.
func requireSharedStore(cfg config.Config) error {
	if cfg.Store.Backend == "" || store.Backend(cfg.Store.Backend) == store.BackendMemory {
		return errors.New("status needs a shared store: set store.backend to file, redis or sqlite")
	}
	return nil
}

func openUploads(paths []string) ([]port.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]port.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("error opening %s %w", p, err)
		}
		files = append(files, f)
		uploads = append(uploads, port.Upload{Name: filepath.Base(p), Body: f})
	}

	return uploads, closeAll, nil
}
