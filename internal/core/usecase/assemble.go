package usecase

import (
	"github.com/assetiq/assetiq/internal/core/domain"
)

// TokenCounter estimates how many tokens a string costs against the
// payload budget.
type TokenCounter interface {
	Count(text string) int
}

// AssembleContext packages the final candidates, any structured result, and
// summary statistics into a budget-bounded payload. Candidates are taken in
// rank order; one that cannot fit with full provenance is dropped whole —
// truncating a passage without its attribution would break citation
// integrity downstream.
func AssembleContext(
	candidates []domain.RetrievalCandidate,
	structured *domain.StructuredResult,
	degraded []string,
	counter TokenCounter,
	tokenBudget int,
) *domain.ContextPayload {
	if tokenBudget <= 0 {
		tokenBudget = 3000
	}

	payload := &domain.ContextPayload{
		Structured: structured,
		Stats: domain.SummaryStats{
			CandidatesConsidered: len(candidates),
			Degraded:             degraded,
		},
	}

	remaining := tokenBudget
	for _, c := range candidates {
		item := domain.ContextItem{
			SourceID: c.Unit.SourceID,
			Origin:   c.Unit.Origin,
			Locator:  c.Unit.Locator,
			Text:     c.Unit.Text,
			Score:    finalScore(c),
		}
		cost := counter.Count(item.Text) + counter.Count(item.SourceID) + counter.Count(item.Locator) + 8
		if cost > remaining {
			continue
		}
		remaining -= cost
		payload.Items = append(payload.Items, item)
	}

	payload.TokenCount = tokenBudget - remaining
	payload.Stats.CandidatesIncluded = len(payload.Items)
	if len(candidates) > 0 {
		payload.Stats.TopScore = finalScore(candidates[0])
	}
	return payload
}

func finalScore(c domain.RetrievalCandidate) float64 {
	if c.RerankScore != 0 {
		return c.RerankScore
	}
	return c.FusedScore
}
