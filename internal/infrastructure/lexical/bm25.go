package lexical

import (
	"math"
	"sort"
	"sync"

	"github.com/assetiq/assetiq/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Index scores queries against the corpus with BM25 over the per-unit term
// statistics computed at ingest time. Scoring is pure and lock-protected so
// the query path and corpus rebuilds can interleave.
type Index struct {
	mu sync.RWMutex

	units     []domain.TextUnit
	docFreq   map[string]int
	avgDocLen float64
}

func NewIndex() *Index {
	return &Index{docFreq: make(map[string]int)}
}

// Rebuild swaps the whole corpus. Called at startup and whenever a
// records-changed or document-ingested event lands.
func (ix *Index) Rebuild(units []domain.TextUnit) {
	docFreq := make(map[string]int, len(units)*8)
	var totalLen int
	for _, unit := range units {
		totalLen += unit.TermLen
		for term := range unit.TermFreq {
			docFreq[term]++
		}
	}

	var avgDocLen float64
	if len(units) > 0 {
		avgDocLen = float64(totalLen) / float64(len(units))
	}

	ix.mu.Lock()
	ix.units = units
	ix.docFreq = docFreq
	ix.avgDocLen = avgDocLen
	ix.mu.Unlock()
}

func (ix *Index) Score(queryTerms []string, k int) []domain.UnitScore {
	if len(queryTerms) == 0 || k <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.units) == 0 {
		return nil
	}

	n := float64(len(ix.units))
	scored := make([]domain.UnitScore, 0, len(ix.units)/4)
	for _, unit := range ix.units {
		var score float64
		for _, term := range queryTerms {
			tf := float64(unit.TermFreq[term])
			if tf == 0 {
				continue
			}
			df := float64(ix.docFreq[term])
			idf := math.Log(1.0 + (n-df+0.5)/(df+0.5))
			norm := 1.0 - bm25B + bm25B*float64(unit.TermLen)/ix.avgDocLen
			score += idf * (tf * (bm25K1 + 1.0)) / (tf + bm25K1*norm)
		}
		if score > 0 {
			scored = append(scored, domain.UnitScore{Unit: unit, Score: score})
		}
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
	return scored
}

// Len reports the corpus size for health reporting.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.units)
}
