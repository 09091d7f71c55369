package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietcare/medsearch/internal/config"
	"github.com/vietcare/medsearch/internal/core/ports"
	"github.com/vietcare/medsearch/internal/core/usecase"
	"github.com/vietcare/medsearch/internal/infrastructure/embedding/phobert"
	"github.com/vietcare/medsearch/internal/infrastructure/hospital/osm"
	"github.com/vietcare/medsearch/internal/infrastructure/keyword/bm25"
	"github.com/vietcare/medsearch/internal/infrastructure/llm/openai"
	"github.com/vietcare/medsearch/internal/infrastructure/queue/nats"
	"github.com/vietcare/medsearch/internal/infrastructure/repository/postgres"
	"github.com/vietcare/medsearch/internal/infrastructure/rerank/crossencoder"
	"github.com/vietcare/medsearch/internal/infrastructure/resilience"
	"github.com/vietcare/medsearch/internal/infrastructure/vector/chroma"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	Hospitals ports.HospitalLocator

	SearchUC *usecase.SearchUseCase
	AnswerUC *usecase.AnswerUseCase
	IndexUC  *usecase.IndexUseCase
	DedupUC  *usecase.DedupUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		ResilienceExecutor: resilience.New(resilience.MessagingPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.New(resilience.ModelServicePolicy())

	embedder := phobert.New(cfg.EmbedderURL, executor)
	vectorDB := chroma.New(cfg.ChromaURL, cfg.ChromaCollection)
	keywordIndex := bm25.NewIndex()

	llmClient := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, executor)
	expander := openai.NewExpander(llmClient)
	generator := openai.NewGenerator(llmClient)

	reranker := crossencoder.New(cfg.RerankerURL, executor)

	lexicon := usecase.DefaultLexicon()
	if cfg.LexiconPath != "" {
		lexicon, err = usecase.LoadLexiconFile(cfg.LexiconPath)
		if err != nil {
			slog.Warn("lexicon_load_failed", "path", cfg.LexiconPath, "error", err)
		}
	}

	retrievalCfg := usecase.RetrievalConfig{
		VectorWeight:   cfg.VectorWeight,
		KeywordWeight:  cfg.KeywordWeight,
		BoostStep:      cfg.BoostStep,
		BoostCap:       cfg.BoostCap,
		MinScore:       cfg.MinScore,
		TopK:           cfg.TopK,
		CandidateLimit: cfg.CandidateLimit,

		ExpansionCount:   cfg.ExpansionCount,
		ExpansionTimeout: time.Duration(cfg.ExpansionTimeoutSeconds) * time.Second,

		RerankTopN:   cfg.RerankTopN,
		RerankWeight: cfg.RerankWeight,

		HighBand:   cfg.HighBand,
		MediumBand: cfg.MediumBand,
		LowBand:    cfg.LowBand,

		DedupThreshold: cfg.DedupThreshold,
	}

	searchUC := usecase.NewSearchUseCase(retrievalCfg, lexicon, embedder, vectorDB, keywordIndex, expander, reranker)
	answerUC := usecase.NewAnswerUseCase(searchUC, generator)
	indexUC := usecase.NewIndexUseCase(repo, embedder, vectorDB, keywordIndex, queue)
	dedupUC := usecase.NewDedupUseCase(repo, embedder, vectorDB, keywordIndex, queue, cfg.DedupThreshold)

	hospitals := osm.New(cfg.OverpassURL)

	return &App{
		Config: cfg,

		Queue:     queue,
		Repo:      repo,
		Hospitals: hospitals,

		SearchUC: searchUC,
		AnswerUC: answerUC,
		IndexUC:  indexUC,
		DedupUC:  dedupUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
