package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// Combinators the extractor refuses to guess at. Flagging them sends the
// caller to the retrieval path instead of silently building a wrong filter.
var unsupportedCombinators = []string{
	" or ", " not ", " between ", " except ", " excluding ", " either ", " neither ",
}

var (
	greaterAgeRe = regexp.MustCompile(`(?i)\b(?:over|above|older than|more than|at least)\s+(\d+(?:\.\d+)?)\s*(?:years?|yrs?)\b`)
	lessAgeRe    = regexp.MustCompile(`(?i)\b(?:under|below|younger than|newer than|less than)\s+(\d+(?:\.\d+)?)\s*(?:years?|yrs?)\b`)
	fieldCompRe  = regexp.MustCompile(`(?i)\b([a-z ]{2,30}?)\s*(?:>|greater than|above)\s*(\d+(?:\.\d+)?)\b`)
	fieldLessRe  = regexp.MustCompile(`(?i)\b([a-z ]{2,30}?)\s*(?:<|less than|below)\s*(\d+(?:\.\d+)?)\b`)
	fromSourceRe = regexp.MustCompile(`(?i)\bfrom\s+((?:[a-z0-9][a-z0-9-]*\s*){1,4})`)
)

// ExtractFilters scans a query for structured predicates against the field
// synonym table. An empty result with a nil error is a valid "no structured
// filter" outcome, not a failure. ErrFilterAmbiguous is returned when the
// query uses combinators the structured path does not support.
func ExtractFilters(query string, table *domain.FieldTable) ([]domain.FilterPredicate, error) {
	if strings.TrimSpace(query) == "" || table == nil {
		return nil, nil
	}

	folded := foldQuery(query)
	for _, combinator := range unsupportedCombinators {
		if strings.Contains(folded, combinator) {
			return nil, fmt.Errorf("%w: combinator %q", domain.ErrFilterAmbiguous, strings.TrimSpace(combinator))
		}
	}

	seen := make(map[string]struct{})
	var preds []domain.FilterPredicate
	add := func(p domain.FilterPredicate) {
		key := p.Field + "|" + string(p.Op) + "|" + strings.ToLower(p.Value)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		preds = append(preds, p)
	}

	// Numeric age phrases: "over 25 years old" and friends.
	for _, m := range greaterAgeRe.FindAllStringSubmatch(query, -1) {
		if p, ok := numericPredicate(table, "age", domain.OpGreaterThan, m[1]); ok {
			add(p)
		}
	}
	for _, m := range lessAgeRe.FindAllStringSubmatch(query, -1) {
		if p, ok := numericPredicate(table, "age", domain.OpLessThan, m[1]); ok {
			add(p)
		}
	}

	// Explicit "field comparator value" phrases.
	for _, m := range fieldCompRe.FindAllStringSubmatch(query, -1) {
		if p, ok := numericPredicate(table, m[1], domain.OpGreaterThan, m[2]); ok {
			add(p)
		}
	}
	for _, m := range fieldLessRe.FindAllStringSubmatch(query, -1) {
		if p, ok := numericPredicate(table, m[1], domain.OpLessThan, m[2]); ok {
			add(p)
		}
	}

	// "from X" maps to the data-source field when X is a known source.
	if m := fromSourceRe.FindStringSubmatch(query); m != nil {
		if field, ok := table.Resolve("source"); ok && field.Type == domain.FieldCategory {
			if value, ok := matchVocabPrefix(field, m[1]); ok {
				add(domain.FilterPredicate{Field: field.Name, Op: domain.OpEquals, Value: value})
			}
		}
	}

	// Implicit filters from controlled-vocabulary mentions: a known
	// condition or criticality word implies an equality filter even with
	// no field name in the query. Mentions resolve through the vocabulary
	// index and are stored with the canonical spelling, so "POOR assets"
	// filters on "Poor".
	const maxMentionTokens = 4
	tokens := splitAlphaNumLower(query)
	for n := maxMentionTokens; n >= 1; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			mention := strings.Join(tokens[i:i+n], " ")
			field, ok := table.OwnerOfValue(mention)
			if !ok || field.Type != domain.FieldCategory {
				continue
			}
			add(domain.FilterPredicate{Field: field.Name, Op: domain.OpEquals, Value: field.CanonicalValue(mention)})
		}
	}

	return preds, nil
}

// DetectIntent decides the aggregate shape of a structured query.
func DetectIntent(query string, table *domain.FieldTable) domain.Intent {
	folded := foldQuery(query)
	tokens := toTokenSet(query)

	if containsPhrase(folded, []string{" by ", " per ", " breakdown ", " grouped "}) {
		if groupField(query, table) != "" {
			return domain.IntentGroupBy
		}
	}
	if containsPhrase(folded, []string{" how many "}) || containsAny(tokens, []string{"count", "total", "number"}) {
		return domain.IntentCount
	}
	if containsAny(tokens, []string{"list", "show", "which", "what"}) {
		return domain.IntentList
	}
	return domain.IntentCount
}

// groupField resolves the field mentioned after a grouping word, if any.
func groupField(query string, table *domain.FieldTable) string {
	if table == nil {
		return ""
	}
	tokens := splitAlphaNumLower(query)
	for i, token := range tokens {
		if token != "by" && token != "per" && token != "grouped" {
			continue
		}
		for j := i + 1; j < len(tokens) && j <= i+2; j++ {
			if f, ok := table.Resolve(tokens[j]); ok {
				return f.Name
			}
		}
	}
	return ""
}

func numericPredicate(table *domain.FieldTable, alias string, op domain.Operator, raw string) (domain.FilterPredicate, bool) {
	field, ok := table.Resolve(strings.TrimSpace(alias))
	if !ok || field.Type != domain.FieldNumeric {
		return domain.FilterPredicate{}, false
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.FilterPredicate{}, false
	}
	return domain.FilterPredicate{Field: field.Name, Op: op, Value: raw, NumValue: n}, true
}

// matchVocabPrefix matches the longest controlled-vocabulary value at the
// start of a captured phrase ("Precise Fire assets" → "Precise Fire").
func matchVocabPrefix(field *domain.Field, phrase string) (string, bool) {
	folded := foldQuery(phrase)
	best := ""
	for _, v := range field.Values {
		fv := foldQuery(v)
		if strings.HasPrefix(folded, strings.TrimRight(fv, " ")+" ") && len(v) > len(best) {
			best = v
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
