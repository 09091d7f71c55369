package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/vietcare/medsearch/internal/adapters/mcp"
	"github.com/vietcare/medsearch/internal/bootstrap"
	"github.com/vietcare/medsearch/internal/config"
	"github.com/vietcare/medsearch/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol; route logs to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))
	log.SetOutput(os.Stderr)

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

	srv := mcpadapter.NewServer(version, app.AnswerUC, app.Hospitals)
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
