package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/medication-finder/internal/bootstrap"
	"github.com/kirillkom/medication-finder/internal/config"
	"github.com/kirillkom/medication-finder/internal/observability/logging"
	"github.com/kirillkom/medication-finder/internal/observability/metrics"
)

const (
	serviceName    = "worker"
	reindexTimeout = 2 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Index.EnsureIndex(ctx); err != nil {
		logger.Warn("search_index_not_ready", "error", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeMedicationChanged(groupCtx, func(handlerCtx context.Context, medicationID string) error {
			reindexCtx, cancel := context.WithTimeout(handlerCtx, reindexTimeout)
			defer cancel()

			workerMetrics.StartIndex()
			started := time.Now()
			err := app.Indexer.ReindexByID(reindexCtx, medicationID)
			workerMetrics.FinishIndex(serviceName, time.Since(started), err)
			if err == nil {
				logger.Info("medication_reindexed", "medication_id", medicationID, "duration_ms", time.Since(started).Milliseconds())
			}
			return err
		})
	})

	if err := group.Wait(); err != nil {
		logger.Error("worker_stopped_with_error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker_stopped")
}
