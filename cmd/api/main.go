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

	httpadapter "github.com/vietcare/medsearch/internal/adapters/http"
	"github.com/vietcare/medsearch/internal/bootstrap"
	"github.com/vietcare/medsearch/internal/config"
	"github.com/vietcare/medsearch/internal/observability/logging"
	"github.com/vietcare/medsearch/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := app.IndexUC.RebuildKeywordIndex(ctx); err != nil {
		slog.Warn("initial_keyword_rebuild_failed", "error", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	// Every replica holds its own in-process keyword index; the corpus
	// update signal tells each one to reload from the catalog.
	go func() {
		err := app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context) error {
			rebuildCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
			defer cancel()
			if err := app.IndexUC.RebuildKeywordIndex(rebuildCtx); err != nil {
				return err
			}
			httpMetrics.RecordKeywordRebuild("api", "corpus_updated")
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("corpus_update_subscription_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Service:   "api",
		Search:    app.SearchUC,
		Answer:    app.AnswerUC,
		Indexer:   app.IndexUC,
		Dedup:     app.DedupUC,
		Repo:      app.Repo,
		Hospitals: app.Hospitals,
		Metrics:   httpMetrics,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
