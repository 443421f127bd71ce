package ports

import (
	"context"
	"io"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// RecordStore executes exact, parameter-bound aggregate queries. Results
// are bit-exact with running the same query directly against the store.
type RecordStore interface {
	Count(ctx context.Context, q domain.StructuredQuery) (int64, error)
	List(ctx context.Context, q domain.StructuredQuery) ([]domain.Record, error)
	GroupBy(ctx context.Context, q domain.StructuredQuery) ([]domain.GroupCount, error)
	Columns(ctx context.Context) ([]string, error)
	UpsertRecords(ctx context.Context, records []domain.Record) error
}

// TextUnitStore persists the retrievable chunks and their precomputed
// lexical statistics.
type TextUnitStore interface {
	SaveTextUnits(ctx context.Context, units []domain.TextUnit) error
	LoadTextUnits(ctx context.Context) ([]domain.TextUnit, error)
	DeleteTextUnitsBySource(ctx context.Context, sourceID string) error
}

// Embedder builds unit-normalized vectors for indexing and for query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ModeClassifier is the external classification call. Errors degrade to the
// heuristic fallback, never to request failure.
type ModeClassifier interface {
	ClassifyMode(ctx context.Context, query string) (domain.Mode, float64, error)
}

// VectorIndex searches precomputed embeddings by inner-product similarity.
// An empty or undersized index returns fewer than k results, not an error.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.UnitScore, error)
	UpsertUnits(ctx context.Context, units []domain.TextUnit, vectors [][]float32) error
}

// LexicalIndex ranks text units by term-overlap relevance. Pure function of
// the precomputed statistics; no external calls, no error path.
type LexicalIndex interface {
	Score(queryTerms []string, k int) []domain.UnitScore
}

// RerankScorer scores (query, passage) pairs jointly. Failure is recovered
// by passing the fused ranking through unchanged.
type RerankScorer interface {
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
}

// ResultCache memoizes final payloads for normalized keys with LRU eviction
// and lazy TTL expiry.
type ResultCache interface {
	Get(key string) (*domain.AnswerResult, bool)
	Put(key string, payload *domain.AnswerResult)
	InvalidateAll()
}

// ObjectStorage holds uploaded source documents until the worker picks
// them up. Keys are opaque; implementations reject path traversal.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue carries the ingest and record-change events between the
// collaborators and this core.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishRecordsChanged(ctx context.Context, reason string) error
	SubscribeRecordsChanged(ctx context.Context, handler func(context.Context, string) error) error
	Close()
}
