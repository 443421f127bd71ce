package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/assetiq/assetiq/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*RecordStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RecordStore{db: db}, mock, func() { _ = db.Close() }
}

func TestCountBindsPredicateValues(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assets WHERE LOWER\(data_source\) = LOWER\(\$1\) AND LOWER\(condition\) = LOWER\(\$2\)`).
		WithArgs("Precise Fire", "Good").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1371))

	plan := domain.StructuredQuery{
		Intent: domain.IntentCount,
		Predicates: []domain.FilterPredicate{
			{Field: "data_source", Op: domain.OpEquals, Value: "Precise Fire"},
			{Field: "condition", Op: domain.OpEquals, Value: "Good"},
		},
	}
	count, err := store.Count(context.Background(), plan)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1371 {
		t.Fatalf("Count() = %d, want 1371", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountNumericPredicate(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assets WHERE age_years > \$1`).
		WithArgs(25.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(44))

	plan := domain.StructuredQuery{
		Intent: domain.IntentCount,
		Predicates: []domain.FilterPredicate{
			{Field: "age_years", Op: domain.OpGreaterThan, NumValue: 25},
		},
	}
	count, err := store.Count(context.Background(), plan)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 44 {
		t.Fatalf("Count() = %d, want 44", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountRejectsUnknownFilterField(t *testing.T) {
	store, _, done := newStoreWithMock(t)
	defer done()

	plan := domain.StructuredQuery{
		Intent: domain.IntentCount,
		Predicates: []domain.FilterPredicate{
			{Field: "asset_color; DROP TABLE assets", Op: domain.OpEquals, Value: "red"},
		},
	}
	_, err := store.Count(context.Background(), plan)
	if !domain.IsKind(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestListAppliesLimitAndScansNullColumns(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "data_source", "condition", "criticality", "category",
		"location", "age_years", "install_year", "description", "created_at", "updated_at",
	}).AddRow("a-1", "Hydrant 1", "Precise Fire", "Good", nil, "Hydrant", nil, 12.5, 2013, nil, now, now)

	mock.ExpectQuery(`FROM assets WHERE LOWER\(data_source\) = LOWER\(\$1\)\s+ORDER BY id ASC\s+LIMIT \$2`).
		WithArgs("Precise Fire", 50).
		WillReturnRows(rows)

	plan := domain.StructuredQuery{
		Intent: domain.IntentList,
		Predicates: []domain.FilterPredicate{
			{Field: "data_source", Op: domain.OpEquals, Value: "Precise Fire"},
		},
	}
	records, err := store.List(context.Background(), plan)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records", len(records))
	}
	if records[0].ID != "a-1" || records[0].Criticality != "" || records[0].AgeYears != 12.5 {
		t.Fatalf("unexpected record %+v", records[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGroupByOrdersByCountThenValue(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"value", "count"}).
		AddRow("Good", 1372).
		AddRow("Fair", 210).
		AddRow("Poor", 44)

	mock.ExpectQuery(`GROUP BY 1\s+ORDER BY COUNT\(\*\) DESC, 1 ASC`).
		WillReturnRows(rows)

	plan := domain.StructuredQuery{Intent: domain.IntentGroupBy, GroupField: "condition"}
	groups, err := store.GroupBy(context.Background(), plan)
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(groups) != 3 || groups[0].Value != "Good" || groups[0].Count != 1372 {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGroupByRejectsUnknownField(t *testing.T) {
	store, _, done := newStoreWithMock(t)
	defer done()

	plan := domain.StructuredQuery{Intent: domain.IntentGroupBy, GroupField: "owner"}
	_, err := store.GroupBy(context.Background(), plan)
	if !domain.IsKind(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestUpsertRecordsCommitsBatch(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assets").
		WithArgs("a-1", "Hydrant 1", "Precise Fire", "Good", "High", "Hydrant", "Zone 4",
			12.5, 2013, "Street hydrant", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpsertRecords(context.Background(), []domain.Record{{
		ID:          "a-1",
		Name:        "Hydrant 1",
		DataSource:  "Precise Fire",
		Condition:   "Good",
		Criticality: "High",
		Category:    "Hydrant",
		Location:    "Zone 4",
		AgeYears:    12.5,
		InstallYear: 2013,
		Description: "Street hydrant",
	}})
	if err != nil {
		t.Fatalf("UpsertRecords() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
