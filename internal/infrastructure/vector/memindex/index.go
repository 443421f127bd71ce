package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/assetiq/assetiq/internal/core/domain"
)

type entry struct {
	unit   domain.TextUnit
	vector []float32
	norm   float64
}

// Index is an in-process cosine-similarity index over the text-unit
// embeddings. It is the fallback vector backend for single-node deployments
// without a qdrant instance; exact brute-force search keeps it byte-for-byte
// deterministic, which the remote backend only approximates.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Index {
	return &Index{entries: make(map[string]entry)}
}

func (ix *Index) UpsertUnits(_ context.Context, units []domain.TextUnit, vectors [][]float32) error {
	if len(units) != len(vectors) {
		return fmt.Errorf("%w: %d units, %d vectors", domain.ErrInvalidInput, len(units), len(vectors))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, unit := range units {
		vec := vectors[i]
		if len(vec) == 0 {
			continue
		}
		ix.entries[unit.ID] = entry{unit: unit, vector: vec, norm: vectorNorm(vec)}
	}
	return nil
}

func (ix *Index) Search(_ context.Context, queryVector []float32, k int) ([]domain.UnitScore, error) {
	if len(queryVector) == 0 || k <= 0 {
		return nil, nil
	}
	queryNorm := vectorNorm(queryVector)
	if queryNorm == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := make([]domain.UnitScore, 0, len(ix.entries))
	for _, e := range ix.entries {
		if len(e.vector) != len(queryVector) || e.norm == 0 {
			continue
		}
		var dot float64
		for i := range queryVector {
			dot += float64(queryVector[i]) * float64(e.vector[i])
		}
		scored = append(scored, domain.UnitScore{
			Unit:  e.unit,
			Score: dot / (queryNorm * e.norm),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Unit.ID < scored[j].Unit.ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
