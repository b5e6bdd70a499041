package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/documents"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/watcher"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Watch the document roots and serve the Query and Admin APIs",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	pool := indexer.NewPool(components.Coordinator, cfg.Ingest.Workers, cfg.Ingest.QueueSize, indexer.WithPoolLogger(logger))
	pool.Start(ctx)
	defer pool.Stop()

	watchSvc := watcher.NewWatcher(watchRoots(cfg), cfg.Sources.Extensions,
		func(ev models.FileEvent) {
			if err := pool.Submit(ctx, ev); err != nil && ctx.Err() == nil {
				logger.Warn("queue file event failed", zap.String("path", ev.Path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Sources.Debounce),
	)
	if err := watchSvc.Start(ctx); err != nil {
		return err
	}
	defer watchSvc.Stop()
	if cfg.Ingest.SyncOnStartOrDefault() {
		go watchSvc.SyncExistingFiles(ctx)
	}

	srv := server.NewServer(components.Pipeline, components.Lifecycle, &cfg.Server,
		server.WithLogger(logger),
		server.WithEventSink(pool),
		server.WithDocuments(documents.NewLibraryFromConfig(cfg, components.Index, extract.NewExtractor(),
			documents.WithLogger(logger))),
	)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err = <-errCh:
		logger.Error("Server failed", zap.Error(err))
		stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	return err
}

func watchRoots(cfg *config.Config) []watcher.Root {
	var roots []watcher.Root
	if cfg.Sources.InternalRoot != "" {
		roots = append(roots, watcher.Root{Path: cfg.Sources.InternalRoot, Category: models.CategoryInternal})
	}
	if cfg.Sources.ExternalRoot != "" {
		roots = append(roots, watcher.Root{Path: cfg.Sources.ExternalRoot, Category: models.CategoryExternal})
	}
	return roots
}
