package usecase

import (
	"github.com/assetiq/assetiq/internal/core/domain"
)

// Vocabulary driving the rule fallback. The external classifier is
// preferred when reachable; these rules only have to be total, not clever.
var (
	aggregateVocab = []string{
		"count", "many", "total", "sum", "average", "number",
		"list", "show", "breakdown", "group", "per", "each", "oldest", "newest",
	}
	referenceVocab = []string{
		"standard", "standards", "code", "codes", "clause", "regulation",
		"regulations", "compliance", "compliant", "requirement", "requirements",
		"guideline", "guidelines", "manual", "specification", "frequency",
		"interval", "procedure", "inspect", "inspection", "testing",
	}
)

type heuristicRule struct {
	matches func(q queryFeatures) bool
	mode    domain.Mode
}

type queryFeatures struct {
	tokens    map[string]struct{}
	aggregate bool
	reference bool
	filterish bool
}

// heuristicRules is evaluated in fixed priority order; the last rule always
// matches, so classification is total.
var heuristicRules = []heuristicRule{
	{matches: func(q queryFeatures) bool { return q.aggregate && q.filterish }, mode: domain.ModeStructured},
	{matches: func(q queryFeatures) bool { return q.reference && !q.filterish }, mode: domain.ModeKnowledge},
	{matches: func(q queryFeatures) bool { return true }, mode: domain.ModeAnalytical},
}

// heuristicClassify is the rule fallback used when the external classifier
// errors or times out. It never fails.
func heuristicClassify(query string, table *domain.FieldTable) domain.Classification {
	features := extractFeatures(query, table)

	for _, rule := range heuristicRules {
		if rule.matches(features) {
			return domain.Classification{
				Mode:       rule.mode,
				Confidence: 0.5,
				RawQuery:   query,
				Heuristic:  true,
			}
		}
	}
	// Unreachable: the final rule matches everything.
	return domain.Classification{Mode: domain.ModeAnalytical, Confidence: 0.5, RawQuery: query, Heuristic: true}
}

func extractFeatures(query string, table *domain.FieldTable) queryFeatures {
	tokens := toTokenSet(query)
	folded := foldQuery(query)

	f := queryFeatures{
		tokens:    tokens,
		aggregate: containsAny(tokens, aggregateVocab) || containsPhrase(folded, []string{" how many "}),
		reference: containsAny(tokens, referenceVocab),
	}

	if table != nil {
		for token := range tokens {
			if _, ok := table.Resolve(token); ok {
				f.filterish = true
				break
			}
			if _, ok := table.OwnerOfValue(token); ok {
				f.filterish = true
				break
			}
		}
		if !f.filterish {
			// Multi-word vocabulary values ("Precise Fire") do not land as
			// single tokens; fall back to a phrase scan per field.
			for _, field := range table.Fields {
				for _, v := range field.Values {
					if containsPhrase(folded, []string{foldQuery(v)}) {
						f.filterish = true
						break
					}
				}
				if f.filterish {
					break
				}
			}
		}
	}
	return f
}

func validMode(m domain.Mode) bool {
	switch m {
	case domain.ModeStructured, domain.ModeAnalytical, domain.ModeKnowledge:
		return true
	default:
		return false
	}
}
