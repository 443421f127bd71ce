package domain

// Origin says what kind of source a text unit was cut from.
type Origin string

const (
	OriginRecord    Origin = "record"
	OriginReference Origin = "reference"
)

// TextUnit is the atomic retrievable chunk: either a serialized record
// summary or a segment of a reference document. Units are immutable after
// ingestion and carry enough provenance to be cited downstream.
type TextUnit struct {
	ID       string         `json:"id"`
	SourceID string         `json:"source_id"`
	Origin   Origin         `json:"origin"`
	Text     string         `json:"text"`
	Locator  string         `json:"locator,omitempty"`
	TermFreq map[string]int `json:"term_freq,omitempty"`
	TermLen  int            `json:"term_len"`

	// Embedding is populated where the caller holds vectors in-process
	// (tests, the in-memory index); the Qdrant adapter keeps vectors
	// server-side and leaves it nil.
	Embedding []float32 `json:"-"`
}

// UnitScore pairs a text unit with one retriever's relevance score.
type UnitScore struct {
	Unit  TextUnit
	Score float64
}
