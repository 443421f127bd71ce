package ingest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// RecordUnit serializes one asset record into its retrievable text unit,
// carrying the term statistics the lexical index scores with.
func RecordUnit(rec domain.Record) domain.TextUnit {
	text := recordText(rec)
	return newUnit(fmt.Sprintf("record:%s", rec.ID), rec.ID, domain.OriginRecord, text, "assets/"+rec.ID)
}

// DocumentUnits cuts extracted document text into units. Locators carry the
// segment position so answers can cite where in the document a passage sits.
func DocumentUnits(docID string, segments []DocumentSegment, splitter *Splitter) []domain.TextUnit {
	if splitter == nil {
		splitter = NewSplitter(0, 0)
	}

	var units []domain.TextUnit
	seq := 0
	for _, seg := range segments {
		for _, chunk := range splitter.Split(seg.Text) {
			id := fmt.Sprintf("doc:%s:%04d", docID, seq)
			units = append(units, newUnit(id, docID, domain.OriginReference, chunk, seg.Locator))
			seq++
		}
	}
	return units
}

// DocumentSegment is one locatable stretch of extracted text, typically a
// page for PDF sources or the whole body for plain text.
type DocumentSegment struct {
	Text    string
	Locator string
}

func newUnit(id, sourceID string, origin domain.Origin, text, locator string) domain.TextUnit {
	tokens := tokenizeAlphaNum(text)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}
	return domain.TextUnit{
		ID:       id,
		SourceID: sourceID,
		Origin:   origin,
		Text:     text,
		Locator:  locator,
		TermFreq: freqs,
		TermLen:  len(tokens),
	}
}

func recordText(rec domain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset %s: %s.", rec.ID, rec.Name)
	appendField(&b, "Category", rec.Category)
	appendField(&b, "Condition", rec.Condition)
	appendField(&b, "Criticality", rec.Criticality)
	appendField(&b, "Location", rec.Location)
	appendField(&b, "Data source", rec.DataSource)
	if rec.InstallYear > 0 {
		fmt.Fprintf(&b, " Installed %d.", rec.InstallYear)
	}
	if rec.AgeYears > 0 {
		fmt.Fprintf(&b, " Age %.1f years.", rec.AgeYears)
	}
	if rec.Description != "" {
		b.WriteString(" " + rec.Description)
	}
	return b.String()
}

func appendField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, " %s: %s.", label, value)
}

// tokenizeAlphaNum mirrors the query-side tokenizer so index-time and
// query-time terms agree.
func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
