package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/assetiq/assetiq/internal/core/domain"
	"github.com/assetiq/assetiq/internal/core/ports"
)

// Observer receives pipeline telemetry. All methods must be cheap; a nil
// observer disables telemetry.
type Observer interface {
	ModeDecided(mode domain.Mode, heuristic bool)
	CacheLookup(hit bool)
	Degraded(stage string)
	StageDuration(stage string, d time.Duration)
}

// Params are the tunables of one pipeline instance.
type Params struct {
	TopN            int           // final candidate count
	RetrieverK      int           // per-retriever candidate count
	RerankHead      int           // fused candidates offered to the re-ranker
	TokenBudget     int           // context payload budget
	ClassifyTimeout time.Duration // external classifier budget
	EmbedTimeout    time.Duration // query embedding budget
	RetrieveTimeout time.Duration // per-side vector/lexical budget
	Fusion          FusionConfig
}

func DefaultParams() Params {
	return Params{
		TopN:            5,
		RetrieverK:      30,
		RerankHead:      20,
		TokenBudget:     3000,
		ClassifyTimeout: 5 * time.Second,
		EmbedTimeout:    10 * time.Second,
		RetrieveTimeout: 10 * time.Second,
		Fusion:          DefaultFusionConfig(),
	}
}

// AnswerUseCase is the query routing and hybrid retrieval pipeline behind
// the single answer_query entry point.
type AnswerUseCase struct {
	table      *domain.FieldTable
	classifier ports.ModeClassifier
	records    ports.RecordStore
	embedder   ports.Embedder
	vectors    ports.VectorIndex
	lexical    ports.LexicalIndex
	reranker   ports.RerankScorer
	cache      ports.ResultCache
	counter    TokenCounter
	observer   Observer
	params     Params
}

func NewAnswerUseCase(
	table *domain.FieldTable,
	classifier ports.ModeClassifier,
	records ports.RecordStore,
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	lexical ports.LexicalIndex,
	reranker ports.RerankScorer,
	cache ports.ResultCache,
	counter TokenCounter,
	observer Observer,
	params Params,
) *AnswerUseCase {
	if params.TopN <= 0 {
		params = DefaultParams()
	}
	return &AnswerUseCase{
		table:      table,
		classifier: classifier,
		records:    records,
		embedder:   embedder,
		vectors:    vectors,
		lexical:    lexical,
		reranker:   reranker,
		cache:      cache,
		counter:    counter,
		observer:   observer,
		params:     params,
	}
}

// AnswerQuery routes a raw query and returns the single response contract
// shared by the presentation layer and the synthesis step. The only hard
// failure is a record-store outage on the structured path; every other
// degradation is silent to the caller and logged with its stage.
func (uc *AnswerUseCase) AnswerQuery(ctx context.Context, rawQuery string) (*domain.AnswerResult, error) {
	cls := uc.classify(ctx, rawQuery)
	uc.observeMode(cls)

	if cls.Mode == domain.ModeStructured {
		result, err := uc.answerStructured(ctx, rawQuery)
		switch {
		case err == nil:
			return result, nil
		case domain.IsKind(err, domain.ErrRecordStoreUnavailable):
			return nil, err
		default:
			// NOT_BUILDABLE or ambiguous filters: lower-accuracy but
			// always-available retrieval takes over.
			uc.degrade("structured_fallback")
			slog.Info("structured_not_buildable", "error", err)
			cls.Mode = domain.ModeAnalytical
		}
	}

	return uc.answerRetrieval(ctx, rawQuery, cls.Mode)
}

// InvalidateAll flushes the result cache; the CRUD collaborator calls this
// after mutating records.
func (uc *AnswerUseCase) InvalidateAll() {
	if uc.cache != nil {
		uc.cache.InvalidateAll()
	}
}

// classify prefers the external classifier and falls back to the total rule
// set. It always returns one of the three modes.
func (uc *AnswerUseCase) classify(ctx context.Context, rawQuery string) domain.Classification {
	if uc.classifier != nil && strings.TrimSpace(rawQuery) != "" {
		start := time.Now()
		clsCtx, cancel := context.WithTimeout(ctx, uc.params.ClassifyTimeout)
		mode, confidence, err := uc.classifier.ClassifyMode(clsCtx, rawQuery)
		cancel()
		uc.observeStage("classify", time.Since(start))

		if err == nil && validMode(mode) {
			return domain.Classification{Mode: mode, Confidence: confidence, RawQuery: rawQuery}
		}
		uc.degrade("classifier")
		slog.Warn("classifier_degraded", "error", err)
	}
	return heuristicClassify(rawQuery, uc.table)
}

func (uc *AnswerUseCase) answerStructured(ctx context.Context, rawQuery string) (*domain.AnswerResult, error) {
	preds, err := ExtractFilters(rawQuery, uc.table)
	if err != nil {
		return nil, err
	}
	plan, err := BuildStructuredQuery(rawQuery, preds, uc.table)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := uc.executePlan(ctx, plan)
	uc.observeStage("structured_query", time.Since(start))
	if err != nil {
		return nil, domain.WrapError(domain.ErrRecordStoreUnavailable, "execute structured query", err)
	}

	return &domain.AnswerResult{
		Mode:       domain.ModeStructured,
		Structured: result,
	}, nil
}

func (uc *AnswerUseCase) executePlan(ctx context.Context, plan domain.StructuredQuery) (*domain.StructuredResult, error) {
	out := &domain.StructuredResult{Intent: plan.Intent}
	switch plan.Intent {
	case domain.IntentCount:
		n, err := uc.records.Count(ctx, plan)
		if err != nil {
			return nil, err
		}
		out.Count = n
	case domain.IntentList:
		records, err := uc.records.List(ctx, plan)
		if err != nil {
			return nil, err
		}
		out.Records = records
		out.Count = int64(len(records))
	case domain.IntentGroupBy:
		groups, err := uc.records.GroupBy(ctx, plan)
		if err != nil {
			return nil, err
		}
		out.Groups = groups
	default:
		return nil, fmt.Errorf("%w: intent %q", domain.ErrNotBuildable, plan.Intent)
	}
	return out, nil
}

func (uc *AnswerUseCase) answerRetrieval(ctx context.Context, rawQuery string, mode domain.Mode) (*domain.AnswerResult, error) {
	key := CacheKey(rawQuery, mode, uc.params.TopN, uc.params.RetrieverK)
	if uc.cache != nil {
		if cached, ok := uc.cache.Get(key); ok {
			uc.observeCache(true)
			hit := *cached
			hit.CacheHit = true
			return &hit, nil
		}
		uc.observeCache(false)
	}

	var degraded []string

	vector, lexical := uc.retrieveBoth(ctx, rawQuery, mode, &degraded)
	fused := FuseRankings(vector, lexical, rawQuery, uc.params.Fusion)

	final, reranked := Rerank(ctx, uc.reranker, rawQuery, fused, uc.params.RerankHead, uc.params.TopN)
	if !reranked && len(fused) > 0 {
		degraded = append(degraded, "rerank")
		uc.degrade("rerank")
	}

	payload := AssembleContext(final, nil, degraded, uc.counter, uc.params.TokenBudget)
	result := &domain.AnswerResult{
		Mode:    mode,
		Context: payload,
	}

	// Never cache on a dying request: an aborted pipeline must not leave
	// partial entries behind.
	if uc.cache != nil && ctx.Err() == nil {
		uc.cache.Put(key, result)
	}
	return result, nil
}

// retrieveBoth runs the vector and lexical searches concurrently and joins
// before fusion. Either side timing out or failing degrades to an empty
// list for that side; both sides empty is still a valid (empty) outcome.
func (uc *AnswerUseCase) retrieveBoth(
	ctx context.Context,
	rawQuery string,
	mode domain.Mode,
	degraded *[]string,
) (vector, lexical []domain.UnitScore) {
	queryVector := uc.embedQuery(ctx, rawQuery, degraded)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if len(queryVector) == 0 || uc.vectors == nil {
			return nil
		}
		start := time.Now()
		sctx, cancel := context.WithTimeout(gctx, uc.params.RetrieveTimeout)
		defer cancel()
		results, err := uc.vectors.Search(sctx, queryVector, uc.params.RetrieverK)
		uc.observeStage("vector_search", time.Since(start))
		if err != nil {
			*degraded = append(*degraded, "vector")
			uc.degrade("vector")
			slog.Warn("vector_search_degraded", "error", err)
			return nil
		}
		vector = filterByMode(results, mode)
		return nil
	})

	g.Go(func() error {
		if uc.lexical == nil {
			return nil
		}
		start := time.Now()
		results := uc.lexical.Score(splitAlphaNumLower(rawQuery), uc.params.RetrieverK)
		uc.observeStage("lexical_search", time.Since(start))
		lexical = filterByMode(results, mode)
		return nil
	})

	// Search goroutines only return nil; the join point is the contract.
	_ = g.Wait()
	return vector, lexical
}

func (uc *AnswerUseCase) embedQuery(ctx context.Context, rawQuery string, degraded *[]string) []float32 {
	if uc.embedder == nil || strings.TrimSpace(rawQuery) == "" {
		return nil
	}
	start := time.Now()
	ectx, cancel := context.WithTimeout(ctx, uc.params.EmbedTimeout)
	defer cancel()
	vec, err := uc.embedder.EmbedQuery(ectx, rawQuery)
	uc.observeStage("embed", time.Since(start))
	if err != nil {
		// Lexical-only retrieval still answers the query.
		*degraded = append(*degraded, "embedding")
		uc.degrade("embedding")
		slog.Warn("embedding_degraded", "error", err)
		return nil
	}
	return vec
}

// filterByMode keeps only reference-document units for knowledge queries;
// analytical queries retrieve across both origins.
func filterByMode(results []domain.UnitScore, mode domain.Mode) []domain.UnitScore {
	if mode != domain.ModeKnowledge {
		return results
	}
	out := results[:0]
	for _, us := range results {
		if us.Unit.Origin == domain.OriginReference {
			out = append(out, us)
		}
	}
	return out
}

func (uc *AnswerUseCase) observeMode(cls domain.Classification) {
	if uc.observer != nil {
		uc.observer.ModeDecided(cls.Mode, cls.Heuristic)
	}
}

func (uc *AnswerUseCase) observeCache(hit bool) {
	if uc.observer != nil {
		uc.observer.CacheLookup(hit)
	}
}

func (uc *AnswerUseCase) degrade(stage string) {
	if uc.observer != nil {
		uc.observer.Degraded(stage)
	}
}

func (uc *AnswerUseCase) observeStage(stage string, d time.Duration) {
	if uc.observer != nil {
		uc.observer.StageDuration(stage, d)
	}
}
