package ports

import (
	"context"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// QueryAnswerer is the single entry point the presentation layer and the
// synthesis step depend on.
type QueryAnswerer interface {
	AnswerQuery(ctx context.Context, rawQuery string) (*domain.AnswerResult, error)
}

// CacheAdmin lets the CRUD collaborator flush stale results after it
// mutates the underlying records.
type CacheAdmin interface {
	InvalidateAll()
}

