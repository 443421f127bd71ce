package usecase

import (
	"regexp"
	"sort"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// FusionWeights is the (lexical, vector) weight pair applied after per-list
// normalization. The pairs are configuration, not constants; the cited
// defaults are a starting point to validate against a labeled query set.
type FusionWeights struct {
	Lexical float64
	Vector  float64
}

// FusionConfig selects weights by query character and the fusion strategy.
type FusionConfig struct {
	Technical  FusionWeights
	Conceptual FusionWeights
	Strategy   string // "weighted" or "rrf"
	RRFK       int
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Technical:  FusionWeights{Lexical: 0.6, Vector: 0.4},
		Conceptual: FusionWeights{Lexical: 0.3, Vector: 0.7},
		Strategy:   "weighted",
		RRFK:       60,
	}
}

// Identifier-like tokens: clause numbers (4.3.1), part codes (AS1851,
// NFPA-10), bare model numbers. Their presence favors lexical matching.
var technicalTokenRes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+(?:\.\d+)+\b`),
	regexp.MustCompile(`\b[A-Z]{2,}[- ]?\d+\b`),
	regexp.MustCompile(`\b[A-Za-z]+\d+[A-Za-z\d-]*\b`),
}

// IsTechnicalQuery reports whether the query carries identifier-like tokens.
func IsTechnicalQuery(query string) bool {
	for _, re := range technicalTokenRes {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// FuseRankings combines the vector and lexical rankings into one candidate
// list. A unit present in only one ranking keeps that ranking's normalized
// score with zero contribution from the absent side. Output is deduplicated
// by unit identity and deterministically ordered.
func FuseRankings(vector, lexical []domain.UnitScore, query string, cfg FusionConfig) []domain.RetrievalCandidate {
	if cfg.Strategy == "rrf" {
		return fuseRRF(vector, lexical, cfg.RRFK)
	}

	weights := cfg.Conceptual
	if IsTechnicalQuery(query) {
		weights = cfg.Technical
	}

	lexMax := maxScore(lexical)

	acc := make(map[string]*domain.RetrievalCandidate, len(vector)+len(lexical))
	for _, us := range vector {
		c := candidateFor(acc, us.Unit)
		c.VectorScore = us.Score
		c.FusedScore += weights.Vector * normalizeSimilarity(us.Score)
	}
	for _, us := range lexical {
		c := candidateFor(acc, us.Unit)
		c.LexicalScore = us.Score
		if lexMax > 0 {
			c.FusedScore += weights.Lexical * (us.Score / lexMax)
		}
	}

	return sortCandidates(acc)
}

// fuseRRF is reciprocal-rank fusion, kept as an alternate strategy.
func fuseRRF(vector, lexical []domain.UnitScore, rrfK int) []domain.RetrievalCandidate {
	if rrfK <= 0 {
		rrfK = 60
	}
	acc := make(map[string]*domain.RetrievalCandidate, len(vector)+len(lexical))
	for rank, us := range vector {
		c := candidateFor(acc, us.Unit)
		c.VectorScore = us.Score
		c.FusedScore += 1.0 / float64(rrfK+rank+1)
	}
	for rank, us := range lexical {
		c := candidateFor(acc, us.Unit)
		c.LexicalScore = us.Score
		c.FusedScore += 1.0 / float64(rrfK+rank+1)
	}
	return sortCandidates(acc)
}

func candidateFor(acc map[string]*domain.RetrievalCandidate, unit domain.TextUnit) *domain.RetrievalCandidate {
	if c, ok := acc[unit.ID]; ok {
		return c
	}
	c := &domain.RetrievalCandidate{Unit: unit}
	acc[unit.ID] = c
	return c
}

// normalizeSimilarity maps an inner-product similarity in [-1,1] onto
// [0,1]. Absolute rather than per-list min-max normalization keeps fusion
// strictly monotone in each raw score and keeps a candidate present in only
// one list from collapsing to zero.
func normalizeSimilarity(s float64) float64 {
	n := (s + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func maxScore(list []domain.UnitScore) float64 {
	max := 0.0
	for _, us := range list {
		if us.Score > max {
			max = us.Score
		}
	}
	return max
}

// sortCandidates orders by fused score descending with the deterministic
// tie chain: vector score, lexical score, then unit ID ascending.
func sortCandidates(acc map[string]*domain.RetrievalCandidate) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, 0, len(acc))
	for _, c := range acc {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].VectorScore != out[j].VectorScore {
			return out[i].VectorScore > out[j].VectorScore
		}
		if out[i].LexicalScore != out[j].LexicalScore {
			return out[i].LexicalScore > out[j].LexicalScore
		}
		return out[i].Unit.ID < out[j].Unit.ID
	})
	return out
}
