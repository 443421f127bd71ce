package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// TextUnitStore persists the retrieval corpus: one row per record summary
// or reference-document chunk. Embeddings live in the vector index; rows
// here carry the term statistics the lexical scorer is rebuilt from.
type TextUnitStore struct {
	db *sql.DB
}

func NewTextUnitStore(db *sql.DB) *TextUnitStore {
	return &TextUnitStore{db: db}
}

func (s *TextUnitStore) SaveTextUnits(ctx context.Context, units []domain.TextUnit) error {
	if len(units) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO text_units (id, source_id, origin, content, locator, term_freqs, term_len, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	source_id = EXCLUDED.source_id,
	origin = EXCLUDED.origin,
	content = EXCLUDED.content,
	locator = EXCLUDED.locator,
	term_freqs = EXCLUDED.term_freqs,
	term_len = EXCLUDED.term_len
`
	now := time.Now().UTC()
	for _, unit := range units {
		freqsJSON, err := json.Marshal(unit.TermFreq)
		if err != nil {
			return fmt.Errorf("marshal term freqs: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			unit.ID, unit.SourceID, string(unit.Origin), unit.Text, unit.Locator, freqsJSON, unit.TermLen, now,
		)
		if err != nil {
			return fmt.Errorf("upsert text unit %s: %w", unit.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func (s *TextUnitStore) LoadTextUnits(ctx context.Context) ([]domain.TextUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source_id, origin, content, locator, term_freqs, term_len
FROM text_units
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("load text units: %w", err)
	}
	defer rows.Close()

	var units []domain.TextUnit
	for rows.Next() {
		var unit domain.TextUnit
		var origin string
		var locator sql.NullString
		var freqsRaw []byte

		if err := rows.Scan(&unit.ID, &unit.SourceID, &origin, &unit.Text, &locator, &freqsRaw, &unit.TermLen); err != nil {
			return nil, fmt.Errorf("scan text unit: %w", err)
		}
		if err := json.Unmarshal(freqsRaw, &unit.TermFreq); err != nil {
			return nil, fmt.Errorf("unmarshal term freqs: %w", err)
		}
		unit.Origin = domain.Origin(origin)
		unit.Locator = locator.String
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate text units: %w", err)
	}
	return units, nil
}

func (s *TextUnitStore) DeleteTextUnitsBySource(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM text_units WHERE source_id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("delete text units for %s: %w", sourceID, err)
	}
	return nil
}
