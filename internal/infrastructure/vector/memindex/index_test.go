package memindex

import (
	"context"
	"math"
	"testing"

	"github.com/assetiq/assetiq/internal/core/domain"
)

func indexed(t *testing.T, ix *Index, id string, vec []float32) {
	t.Helper()
	err := ix.UpsertUnits(context.Background(), []domain.TextUnit{{ID: id, SourceID: "src-" + id}}, [][]float32{vec})
	if err != nil {
		t.Fatalf("UpsertUnits(%s) error = %v", id, err)
	}
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	ix := New()
	indexed(t, ix, "aligned", []float32{1, 0})
	indexed(t, ix, "diagonal", []float32{1, 1})
	indexed(t, ix, "opposed", []float32{-1, 0})

	scored, err := ix.Search(context.Background(), []float32{2, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 results, got %d", len(scored))
	}
	if scored[0].Unit.ID != "aligned" || scored[2].Unit.ID != "opposed" {
		t.Fatalf("unexpected order: %s ... %s", scored[0].Unit.ID, scored[2].Unit.ID)
	}
	if math.Abs(scored[0].Score-1.0) > 1e-9 {
		t.Fatalf("aligned similarity = %f, want 1", scored[0].Score)
	}
	if math.Abs(scored[2].Score+1.0) > 1e-9 {
		t.Fatalf("opposed similarity = %f, want -1", scored[2].Score)
	}
}

func TestSearchTruncatesAndBreaksTiesByID(t *testing.T) {
	ix := New()
	indexed(t, ix, "u2", []float32{1, 0})
	indexed(t, ix, "u1", []float32{1, 0})
	indexed(t, ix, "u3", []float32{0, 1})

	scored, err := ix.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected k=2 results, got %d", len(scored))
	}
	if scored[0].Unit.ID != "u1" || scored[1].Unit.ID != "u2" {
		t.Fatalf("tie order wrong: %s, %s", scored[0].Unit.ID, scored[1].Unit.ID)
	}
}

func TestUpsertReplacesExistingUnit(t *testing.T) {
	ix := New()
	indexed(t, ix, "u1", []float32{1, 0})
	indexed(t, ix, "u1", []float32{0, 1})

	if ix.Len() != 1 {
		t.Fatalf("Len() = %d after re-upsert", ix.Len())
	}
	scored, err := ix.Search(context.Background(), []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if math.Abs(scored[0].Score-1.0) > 1e-9 {
		t.Fatalf("replaced vector not served, score = %f", scored[0].Score)
	}
}

func TestSearchEmptyAndMismatchedInputs(t *testing.T) {
	ix := New()
	indexed(t, ix, "u1", []float32{1, 0, 0})

	if got, err := ix.Search(context.Background(), nil, 5); err != nil || got != nil {
		t.Fatalf("empty query: %v, %v", got, err)
	}
	// Dimension mismatch entries are skipped, not an error.
	got, err := ix.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("mismatched dimensions: %v, %v", got, err)
	}

	err = ix.UpsertUnits(context.Background(), []domain.TextUnit{{ID: "u2"}}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
