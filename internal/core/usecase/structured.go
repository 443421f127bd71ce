package usecase

import (
	"fmt"

	"github.com/assetiq/assetiq/internal/core/domain"
)

const defaultListLimit = 50

// BuildStructuredQuery turns extracted predicates into an exact plan, or
// reports ErrNotBuildable so the caller falls back to retrieval. The plan
// only ever references canonical schema fields; values are carried as bind
// parameters by the record store, never concatenated.
func BuildStructuredQuery(
	query string,
	preds []domain.FilterPredicate,
	table *domain.FieldTable,
) (domain.StructuredQuery, error) {
	if table == nil {
		return domain.StructuredQuery{}, fmt.Errorf("%w: no schema table", domain.ErrNotBuildable)
	}

	for _, p := range preds {
		field, ok := table.Resolve(p.Field)
		if !ok {
			return domain.StructuredQuery{}, fmt.Errorf("%w: %w: %s", domain.ErrNotBuildable, domain.ErrUnknownField, p.Field)
		}
		switch p.Op {
		case domain.OpEquals:
		case domain.OpGreaterThan, domain.OpLessThan:
			if field.Type != domain.FieldNumeric {
				return domain.StructuredQuery{}, fmt.Errorf("%w: numeric operator on %s field %s", domain.ErrNotBuildable, field.Type, field.Name)
			}
		default:
			return domain.StructuredQuery{}, fmt.Errorf("%w: operator %q", domain.ErrNotBuildable, p.Op)
		}
	}

	intent := DetectIntent(query, table)
	plan := domain.StructuredQuery{
		Intent:     intent,
		Predicates: preds,
	}

	switch intent {
	case domain.IntentGroupBy:
		gf := groupField(query, table)
		if gf == "" {
			return domain.StructuredQuery{}, fmt.Errorf("%w: group field not resolved", domain.ErrNotBuildable)
		}
		plan.GroupField = gf
	case domain.IntentList:
		plan.Limit = defaultListLimit
	case domain.IntentCount:
	default:
		return domain.StructuredQuery{}, fmt.Errorf("%w: intent %q", domain.ErrNotBuildable, intent)
	}

	// Unfiltered counts and breakdowns are exact whole-table aggregates and
	// stay on the structured path; an unfiltered list is more likely a
	// misrouted analytical query.
	if len(preds) == 0 && intent == domain.IntentList {
		return domain.StructuredQuery{}, fmt.Errorf("%w: no predicates recognized", domain.ErrNotBuildable)
	}

	return plan, nil
}
