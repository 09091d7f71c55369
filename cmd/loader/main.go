package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vietcare/medsearch/internal/bootstrap"
	"github.com/vietcare/medsearch/internal/config"
	"github.com/vietcare/medsearch/internal/infrastructure/dataset"
	"github.com/vietcare/medsearch/internal/observability/logging"
)

func main() {
	var (
		filePath  = flag.String("file", "", "path to a CSV, XLSX or PDF dataset")
		batchSize = flag.Int("batch", 100, "documents per upsert batch")
	)
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("loader", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := dataset.Load(*filePath)
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	if len(docs) == 0 {
		log.Fatalf("dataset %s contains no usable documents", *filePath)
	}
	log.Printf("loaded %d documents from %s", len(docs), *filePath)

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	size := *batchSize
	if size <= 0 {
		size = 100
	}
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		if err := app.IndexUC.UpsertDocuments(ctx, docs[start:end]); err != nil {
			log.Fatalf("upsert batch %d-%d: %v", start, end, err)
		}
		log.Printf("queued documents %d-%d of %d", start+1, end, len(docs))
	}
}
