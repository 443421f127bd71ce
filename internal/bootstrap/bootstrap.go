package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/assetiq/assetiq/internal/config"
	"github.com/assetiq/assetiq/internal/core/domain"
	"github.com/assetiq/assetiq/internal/core/ports"
	"github.com/assetiq/assetiq/internal/core/usecase"
	"github.com/assetiq/assetiq/internal/infrastructure/cache"
	"github.com/assetiq/assetiq/internal/infrastructure/ingest"
	"github.com/assetiq/assetiq/internal/infrastructure/lexical"
	"github.com/assetiq/assetiq/internal/infrastructure/llm/ollama"
	"github.com/assetiq/assetiq/internal/infrastructure/queue/nats"
	"github.com/assetiq/assetiq/internal/infrastructure/repository/postgres"
	"github.com/assetiq/assetiq/internal/infrastructure/resilience"
	"github.com/assetiq/assetiq/internal/infrastructure/schema"
	"github.com/assetiq/assetiq/internal/infrastructure/storage/localfs"
	"github.com/assetiq/assetiq/internal/infrastructure/tokens"
	"github.com/assetiq/assetiq/internal/infrastructure/vector/memindex"
	"github.com/assetiq/assetiq/internal/infrastructure/vector/qdrant"
	"github.com/assetiq/assetiq/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Table    *domain.FieldTable
	Queue    ports.MessageQueue
	Storage  ports.ObjectStorage
	Units    ports.TextUnitStore
	Records  ports.RecordStore
	Lexical  *lexical.Index
	Cache    *cache.ResultCache
	AnswerUC *usecase.AnswerUseCase
	Pipeline *ingest.Pipeline

	// Generator is nil unless answer synthesis is enabled.
	Generator *ollama.Generator

	HTTPMetrics     *metrics.HTTPServerMetrics
	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	recordStore := postgres.NewRecordStore(db)
	if err := recordStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	unitStore := postgres.NewTextUnitStore(db)

	table, err := schema.Load(cfg.SynonymTablePath)
	if err != nil {
		return nil, fmt.Errorf("load synonym table: %w", err)
	}
	if err := schema.Validate(ctx, table, recordStore); err != nil {
		return nil, fmt.Errorf("validate synonym table: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registry())

	exec := resilience.NewExecutor(resilience.DefaultConfig())
	exec.OnStateChange(pipelineMetrics.BreakerStateChanged)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)
	embedder := ollama.NewEmbedder(ollamaClient)

	var reranker ports.RerankScorer
	if cfg.RerankBackend == "overlap" {
		reranker = usecase.OverlapScorer{}
	} else {
		reranker = ollama.NewReranker(ollamaClient)
	}

	var classifier ports.ModeClassifier
	if cfg.ClassifierEnabled {
		classifier = ollama.NewClassifier(ollamaClient)
	}
	var generator *ollama.Generator
	if cfg.SynthesisEnabled {
		generator = ollama.NewGenerator(ollamaClient)
	}

	var vectorIndex ports.VectorIndex
	if cfg.VectorBackend == "memory" {
		vectorIndex = memindex.New()
	} else {
		vectorIndex = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	}

	lexIndex := lexical.NewIndex()
	units, err := unitStore.LoadTextUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load text units: %w", err)
	}
	lexIndex.Rebuild(units)
	slog.Info("lexical_index_ready", "units", lexIndex.Len())

	resultCache, err := cache.NewResultCache(cfg.CacheMaxEntries, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("init result cache: %w", err)
	}

	params := usecase.DefaultParams()
	params.TopN = cfg.TopN
	params.RetrieverK = cfg.RetrieverK
	params.RerankHead = cfg.RerankHead
	params.TokenBudget = cfg.TokenBudget
	params.Fusion.Strategy = cfg.FusionStrategy
	params.Fusion.RRFK = cfg.FusionRRFK
	params.Fusion.Technical = usecase.FusionWeights{Lexical: cfg.FusionTechLexWeight, Vector: cfg.FusionTechVecWeight}
	params.Fusion.Conceptual = usecase.FusionWeights{Lexical: cfg.FusionConcLexWeight, Vector: cfg.FusionConcVecWeight}

	answerUC := usecase.NewAnswerUseCase(
		table,
		classifier,
		recordStore,
		embedder,
		vectorIndex,
		lexIndex,
		reranker,
		resultCache,
		tokens.NewCounter(),
		pipelineMetrics,
		params,
	)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	splitter := ingest.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := ingest.NewPipeline(embedder, vectorIndex, unitStore, recordStore, splitter, cfg.IngestBatchSize, cfg.IngestWorkers)

	return &App{
		Config:   cfg,
		Table:    table,
		Queue:    queue,
		Storage:  storage,
		Units:    unitStore,
		Records:  recordStore,
		Lexical:  lexIndex,
		Cache:    resultCache,
		AnswerUC: answerUC,
		Pipeline: pipeline,

		Generator: generator,

		HTTPMetrics:     httpMetrics,
		PipelineMetrics: pipelineMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// ListenRecordChanges subscribes to the record-change subject: the cache is
// flushed and the lexical index reloaded so exact counts and term statistics
// never serve stale data.
func (a *App) ListenRecordChanges(ctx context.Context, service string) error {
	return a.Queue.SubscribeRecordsChanged(ctx, func(handlerCtx context.Context, sourceID string) error {
		hits, misses := a.Cache.Stats()
		a.AnswerUC.InvalidateAll()
		if a.HTTPMetrics != nil {
			a.HTTPMetrics.RecordInvalidation(service, "records_changed")
		}
		slog.Info("result_cache_flushed", "source", sourceID, "lifetime_hits", hits, "lifetime_misses", misses)

		units, err := a.Units.LoadTextUnits(handlerCtx)
		if err != nil {
			return fmt.Errorf("reload text units: %w", err)
		}
		a.Lexical.Rebuild(units)
		slog.Info("indexes_reloaded", "source", sourceID, "units", a.Lexical.Len())
		return nil
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
