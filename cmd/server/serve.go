package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/config"
	"github.com/nicktill/ipedscomps/pkg/logging"
	"github.com/nicktill/ipedscomps/pkg/server"
)

// run loads the dataset, starts the API and blocks until SIGINT or SIGTERM.
func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := logging.NewLogger()
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Desugar())

	logger.Infow("Starting ipedscomps", "version", server.Version, "data_dir", cfg.DataDir)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := server.LoadDataset(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to load dataset", "error", err)
	}

	store, err := server.InitializeStorage(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize cache storage", "error", err)
	}
	defer store.Close()

	components := server.InitializeComponents(cfg, ds, store, logger)

	router := mux.NewRouter()
	server.SetupRoutes(router, components, server.RouteOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		QueryTimeout:   cfg.QueryTimeout,
		Logger:         logger,
	})

	tasksCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	var wg sync.WaitGroup
	wg.Add(2)
	go server.RunDatasetWatch(tasksCtx, components.DatasetMonitor, config.DatasetCheckInterval, logger.Named("dataset"), &wg)
	go server.RunBadgerGC(tasksCtx, store, config.BadgerGCInterval, logger.Named("badger"), &wg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("Server listening",
			"addr", "http://localhost:"+cfg.Port,
			"years", ds.Registry.Years(),
			"institutions", ds.Directory.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Infow("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			cancelTasks()
			wg.Wait()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	logger.Infow("Gracefully shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("Server shutdown warning", "error", err)
	}

	logger.Infow("Waiting for background tasks to complete")
	cancelTasks()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Infow("Shutdown complete")
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warnw("Background tasks did not stop in time")
	}
	return nil
}
