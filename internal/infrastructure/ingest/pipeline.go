package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/assetiq/assetiq/internal/core/domain"
	"github.com/assetiq/assetiq/internal/core/ports"
)

const (
	defaultBatchSize = 16
	defaultWorkers   = 4
)

// Pipeline turns source material into indexed text units: persist the
// units, embed them in parallel batches, push vectors to the index. The
// lexical index is rebuilt by whoever subscribes to the change events, not
// here.
type Pipeline struct {
	embedder  ports.Embedder
	vectors   ports.VectorIndex
	units     ports.TextUnitStore
	records   ports.RecordStore
	splitter  *Splitter
	batchSize int
	workers   int
}

func NewPipeline(
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	units ports.TextUnitStore,
	records ports.RecordStore,
	splitter *Splitter,
	batchSize, workers int,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if splitter == nil {
		splitter = NewSplitter(0, 0)
	}
	return &Pipeline{
		embedder:  embedder,
		vectors:   vectors,
		units:     units,
		records:   records,
		splitter:  splitter,
		batchSize: batchSize,
		workers:   workers,
	}
}

// IngestRecords upserts an asset batch and refreshes their summary units.
func (p *Pipeline) IngestRecords(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	if err := p.records.UpsertRecords(ctx, records); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}

	units := make([]domain.TextUnit, 0, len(records))
	for _, rec := range records {
		units = append(units, RecordUnit(rec))
	}
	return p.indexUnits(ctx, units)
}

// IngestDocument replaces a reference document's units with freshly cut
// segments.
func (p *Pipeline) IngestDocument(ctx context.Context, docID string, segments []DocumentSegment) error {
	units := DocumentUnits(docID, segments, p.splitter)

	if err := p.units.DeleteTextUnitsBySource(ctx, docID); err != nil {
		return fmt.Errorf("drop stale units: %w", err)
	}
	if len(units) == 0 {
		slog.Warn("document_has_no_text", "doc_id", docID)
		return nil
	}
	return p.indexUnits(ctx, units)
}

func (p *Pipeline) indexUnits(ctx context.Context, units []domain.TextUnit) error {
	if err := p.units.SaveTextUnits(ctx, units); err != nil {
		return fmt.Errorf("save text units: %w", err)
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return fmt.Errorf("create embed pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for start := 0; start < len(units); start += p.batchSize {
		end := start + p.batchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := p.embedBatch(ctx, batch); err != nil {
				fail(err)
			}
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embed batch: %w", err))
			break
		}
	}
	wg.Wait()
	return firstErr
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []domain.TextUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	texts := make([]string, 0, len(batch))
	for _, unit := range batch {
		texts = append(texts, unit.Text)
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if err := p.vectors.UpsertUnits(ctx, batch, vectors); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}
