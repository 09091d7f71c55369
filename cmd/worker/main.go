package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vietcare/medsearch/internal/bootstrap"
	"github.com/vietcare/medsearch/internal/config"
	"github.com/vietcare/medsearch/internal/observability/logging"
	"github.com/vietcare/medsearch/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker consuming document upsert events")
	err = app.Queue.SubscribeDocumentsUpserted(ctx, func(handlerCtx context.Context, ids []string) error {
		batchCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartBatch()
		started := time.Now()
		indexErr := app.IndexUC.IndexBatch(batchCtx, ids)
		workerMetrics.FinishBatch("worker", len(ids), time.Since(started), indexErr)
		return indexErr
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
