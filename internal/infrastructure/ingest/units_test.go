package ingest

import (
	"strings"
	"testing"

	"github.com/assetiq/assetiq/internal/core/domain"
)

func TestRecordUnitSerializesFieldsWithTermStats(t *testing.T) {
	unit := RecordUnit(domain.Record{
		ID:          "a-1",
		Name:        "Hydrant 1",
		DataSource:  "Precise Fire",
		Condition:   "Good",
		Category:    "Hydrant",
		InstallYear: 2013,
		AgeYears:    12.5,
	})

	if unit.ID != "record:a-1" || unit.SourceID != "a-1" || unit.Origin != domain.OriginRecord {
		t.Fatalf("unexpected identity %+v", unit)
	}
	for _, want := range []string{"Hydrant 1", "Precise Fire", "Good", "2013"} {
		if !strings.Contains(unit.Text, want) {
			t.Fatalf("text missing %q: %s", want, unit.Text)
		}
	}
	if unit.TermFreq["hydrant"] != 2 {
		t.Fatalf("term freq for hydrant = %d, want 2 (name and category)", unit.TermFreq["hydrant"])
	}
	if unit.TermLen == 0 {
		t.Fatalf("term length not computed")
	}
}

func TestDocumentUnitsChunkPerSegmentWithLocators(t *testing.T) {
	splitter := NewSplitter(10, 0)
	segments := []DocumentSegment{
		{Text: strings.Repeat("a", 25), Locator: "page 1"},
		{Text: "short", Locator: "page 2"},
	}

	units := DocumentUnits("doc-7", segments, splitter)
	if len(units) != 4 {
		t.Fatalf("expected 4 units (3 + 1), got %d", len(units))
	}
	if units[0].ID != "doc:doc-7:0000" || units[3].ID != "doc:doc-7:0003" {
		t.Fatalf("unit ids not sequential: %s ... %s", units[0].ID, units[3].ID)
	}
	if units[2].Locator != "page 1" || units[3].Locator != "page 2" {
		t.Fatalf("locators lost: %s, %s", units[2].Locator, units[3].Locator)
	}
	for _, unit := range units {
		if unit.Origin != domain.OriginReference || unit.SourceID != "doc-7" {
			t.Fatalf("unexpected provenance %+v", unit)
		}
	}
}

func TestSplitterOverlapsWindows(t *testing.T) {
	splitter := NewSplitter(10, 4)
	chunks := splitter.Split("abcdefghijklmnop")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "abcdefghij" || chunks[1] != "ghijklmnop" {
		t.Fatalf("overlap wrong: %v", chunks)
	}
	if splitter.Split("") != nil {
		t.Fatalf("empty text must yield nil")
	}
}
