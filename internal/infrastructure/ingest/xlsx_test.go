package ingest

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/assetiq/assetiq/internal/core/domain"
)

func workbookBytes(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestReadWorkbookMapsAliasedHeaders(t *testing.T) {
	buf := workbookBytes(t, [][]any{
		{"Asset ID", "Asset Name", "Source System", "State", "Zone", "Age Years", "Year Installed"},
		{"a-1", "Hydrant 1", "Precise Fire", "Good", "Zone 4", "12.5", "2013"},
		{"a-2", "Valve 9", "Hansen", "Poor", "", "40", ""},
	})

	records, err := ReadWorkbook(buf)
	if err != nil {
		t.Fatalf("ReadWorkbook() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.ID != "a-1" || first.DataSource != "Precise Fire" || first.Condition != "Good" {
		t.Fatalf("unexpected record %+v", first)
	}
	if first.Location != "Zone 4" || first.AgeYears != 12.5 || first.InstallYear != 2013 {
		t.Fatalf("unexpected record %+v", first)
	}
	if records[1].AgeYears != 40 || records[1].InstallYear != 0 {
		t.Fatalf("unexpected record %+v", records[1])
	}
}

func TestReadWorkbookSkipsRowsWithoutID(t *testing.T) {
	buf := workbookBytes(t, [][]any{
		{"id", "name"},
		{"", "orphan row"},
		{"a-3", "Pump 2"},
	})

	records, err := ReadWorkbook(buf)
	if err != nil {
		t.Fatalf("ReadWorkbook() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != "a-3" {
		t.Fatalf("expected only a-3, got %+v", records)
	}
}

func TestReadWorkbookRejectsMissingIDColumn(t *testing.T) {
	buf := workbookBytes(t, [][]any{
		{"name", "condition"},
		{"Hydrant 1", "Good"},
	})

	_, err := ReadWorkbook(buf)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReadWorkbookRejectsEmptySheet(t *testing.T) {
	buf := workbookBytes(t, [][]any{
		{"id", "name"},
	})

	_, err := ReadWorkbook(buf)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
