package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/assetiq/assetiq/internal/core/domain"
	"github.com/assetiq/assetiq/internal/core/ports"
)

// Rerank rescores the fused head with a joint (query, passage) relevance
// model and truncates to topN. The joint model sees both texts together, so
// it catches interaction effects fusion cannot. When the scorer is
// unavailable the top fused candidates pass through unchanged; rerank
// failure never fails the query.
func Rerank(
	ctx context.Context,
	scorer ports.RerankScorer,
	query string,
	fused []domain.RetrievalCandidate,
	head, topN int,
) ([]domain.RetrievalCandidate, bool) {
	if topN <= 0 {
		topN = 5
	}
	if len(fused) == 0 {
		return fused, false
	}
	if head < topN {
		head = topN
	}
	if head > len(fused) {
		head = len(fused)
	}

	candidates := make([]domain.RetrievalCandidate, head)
	copy(candidates, fused[:head])

	if scorer == nil {
		return trimCandidates(candidates, topN), false
	}

	passages := make([]string, len(candidates))
	locators := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Unit.Text
		locators[i] = c.Unit.Locator
	}

	var scores []float64
	var err error
	if aware, ok := scorer.(locatorAwareScorer); ok {
		scores, err = aware.ScorePairsWithLocators(ctx, query, passages, locators)
	} else {
		scores, err = scorer.ScorePairs(ctx, query, passages)
	}
	if err != nil || len(scores) != len(candidates) {
		slog.Warn("rerank_degraded", "error", err, "scores", len(scores), "candidates", len(candidates))
		return trimCandidates(candidates, topN), false
	}

	for i := range candidates {
		candidates[i].RerankScore = scores[i]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RerankScore != candidates[j].RerankScore {
			return candidates[i].RerankScore > candidates[j].RerankScore
		}
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].Unit.ID < candidates[j].Unit.ID
	})

	return trimCandidates(candidates, topN), true
}

func trimCandidates(candidates []domain.RetrievalCandidate, limit int) []domain.RetrievalCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

// locatorAwareScorer is the optional upgrade a RerankScorer can implement to
// also see each candidate's locator. The LLM scorer works from passages
// alone; the overlap scorer uses locators as an extra signal.
type locatorAwareScorer interface {
	ScorePairsWithLocators(ctx context.Context, query string, passages, locators []string) ([]float64, error)
}

// OverlapScorer is the in-process rerank backend: no model call, just token
// overlap. Selected with RERANK_BACKEND=overlap for deployments without a
// reranking model.
type OverlapScorer struct{}

func (OverlapScorer) ScorePairs(_ context.Context, query string, passages []string) ([]float64, error) {
	return OverlapRerankScores(query, passages, nil), nil
}

func (OverlapScorer) ScorePairsWithLocators(_ context.Context, query string, passages, locators []string) ([]float64, error) {
	return OverlapRerankScores(query, passages, locators), nil
}

// OverlapRerankScores scores each passage by token overlap with the query
// plus a locator hit.
func OverlapRerankScores(query string, passages []string, locators []string) []float64 {
	queryTokens := toTokenSet(query)
	out := make([]float64, len(passages))
	for i, passage := range passages {
		overlap := tokenOverlap(queryTokens, toTokenSet(passage))
		locatorHit := 0.0
		if i < len(locators) && locatorTokenHit(queryTokens, locators[i]) {
			locatorHit = 1.0
		}
		out[i] = 0.85*overlap + 0.15*locatorHit
	}
	return out
}

func tokenOverlap(query, passage map[string]struct{}) float64 {
	if len(query) == 0 || len(passage) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := passage[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func locatorTokenHit(query map[string]struct{}, locator string) bool {
	if len(query) == 0 || locator == "" {
		return false
	}
	locator = strings.ToLower(locator)
	for token := range query {
		if token != "" && strings.Contains(locator, token) {
			return true
		}
	}
	return false
}
