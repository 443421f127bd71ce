package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// allowedColumns whitelists every identifier that may appear in generated
// SQL. Predicate values always travel as bind parameters; only names from
// this set are ever interpolated.
var allowedColumns = map[string]string{
	"id":           "id",
	"name":         "name",
	"data_source":  "data_source",
	"condition":    "condition",
	"criticality":  "criticality",
	"category":     "category",
	"location":     "location",
	"age_years":    "age_years",
	"install_year": "install_year",
	"description":  "description",
}

type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordStore) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026040201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	data_source TEXT NOT NULL,
	condition TEXT,
	criticality TEXT,
	category TEXT,
	location TEXT,
	age_years DOUBLE PRECISION,
	install_year INTEGER,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_data_source ON assets(data_source);
CREATE INDEX IF NOT EXISTS idx_assets_condition ON assets(condition);
CREATE INDEX IF NOT EXISTS idx_assets_category ON assets(category);

CREATE TABLE IF NOT EXISTS text_units (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	origin TEXT NOT NULL,
	content TEXT NOT NULL,
	locator TEXT,
	term_freqs JSONB NOT NULL DEFAULT '{}'::jsonb,
	term_len INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_text_units_source ON text_units(source_id);
CREATE INDEX IF NOT EXISTS idx_text_units_origin ON text_units(origin);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordStore) Count(ctx context.Context, plan domain.StructuredQuery) (int64, error) {
	where, args, err := buildWhere(plan.Predicates)
	if err != nil {
		return 0, err
	}

	var count int64
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets"+where, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}

func (r *RecordStore) List(ctx context.Context, plan domain.StructuredQuery) ([]domain.Record, error) {
	where, args, err := buildWhere(plan.Predicates)
	if err != nil {
		return nil, err
	}

	limit := plan.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT id, name, data_source, condition, criticality, category, location, age_years, install_year, description, created_at, updated_at
FROM assets%s
ORDER BY id ASC
LIMIT $%d
`, where, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var condition, criticality, category, location, description sql.NullString
		var ageYears sql.NullFloat64
		var installYear sql.NullInt64

		err := rows.Scan(
			&rec.ID, &rec.Name, &rec.DataSource, &condition, &criticality, &category,
			&location, &ageYears, &installYear, &description, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		rec.Condition = condition.String
		rec.Criticality = criticality.String
		rec.Category = category.String
		rec.Location = location.String
		rec.Description = description.String
		rec.AgeYears = ageYears.Float64
		rec.InstallYear = int(installYear.Int64)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return records, nil
}

func (r *RecordStore) GroupBy(ctx context.Context, plan domain.StructuredQuery) ([]domain.GroupCount, error) {
	column, ok := allowedColumns[plan.GroupField]
	if !ok {
		return nil, fmt.Errorf("%w: group field %q", domain.ErrUnknownField, plan.GroupField)
	}

	where, args, err := buildWhere(plan.Predicates)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT COALESCE(%s::text, ''), COUNT(*)
FROM assets%s
GROUP BY 1
ORDER BY COUNT(*) DESC, 1 ASC
`, column, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group assets: %w", err)
	}
	defer rows.Close()

	var groups []domain.GroupCount
	for rows.Next() {
		var g domain.GroupCount
		if err := rows.Scan(&g.Value, &g.Count); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// Columns lists asset table columns for synonym-table validation.
func (r *RecordStore) Columns(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_name = 'assets'
ORDER BY ordinal_position
`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (r *RecordStore) UpsertRecords(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO assets (
	id, name, data_source, condition, criticality, category, location, age_years, install_year, description, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	data_source = EXCLUDED.data_source,
	condition = EXCLUDED.condition,
	criticality = EXCLUDED.criticality,
	category = EXCLUDED.category,
	location = EXCLUDED.location,
	age_years = EXCLUDED.age_years,
	install_year = EXCLUDED.install_year,
	description = EXCLUDED.description,
	updated_at = EXCLUDED.updated_at
`
	now := time.Now().UTC()
	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx, query,
			rec.ID, rec.Name, rec.DataSource, rec.Condition, rec.Criticality, rec.Category,
			rec.Location, rec.AgeYears, rec.InstallYear, rec.Description, createdAt, now,
		)
		if err != nil {
			return fmt.Errorf("upsert asset %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// buildWhere renders AND-joined predicates as a parameterized WHERE clause.
// Category comparisons are case-insensitive so canonical vocabulary values
// match however the source system cased them.
func buildWhere(preds []domain.FilterPredicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		column, ok := allowedColumns[p.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: filter field %q", domain.ErrUnknownField, p.Field)
		}

		switch p.Op {
		case domain.OpEquals:
			if p.Value != "" {
				clauses = append(clauses, fmt.Sprintf("LOWER(%s) = LOWER($%d)", column, len(args)+1))
				args = append(args, p.Value)
			} else {
				clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)+1))
				args = append(args, p.NumValue)
			}
		case domain.OpGreaterThan:
			clauses = append(clauses, fmt.Sprintf("%s > $%d", column, len(args)+1))
			args = append(args, p.NumValue)
		case domain.OpLessThan:
			clauses = append(clauses, fmt.Sprintf("%s < $%d", column, len(args)+1))
			args = append(args, p.NumValue)
		default:
			return "", nil, fmt.Errorf("%w: operator %q", domain.ErrNotBuildable, p.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
