package domain

// Mode is the routing decision for a query.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeAnalytical Mode = "analytical"
	ModeKnowledge  Mode = "knowledge"
)

// Classification is the router's verdict for one raw query. It is produced
// fresh per request and never persisted.
type Classification struct {
	Mode       Mode    `json:"mode"`
	Confidence float64 `json:"confidence"`
	RawQuery   string  `json:"raw_query"`

	// Heuristic is true when the external classifier was unavailable and
	// the rule fallback decided the mode.
	Heuristic bool `json:"heuristic,omitempty"`
}

// Operator is a filter comparison. Numeric operators are only valid on
// numeric fields; the schema table enforces that at build time.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
)

// FilterPredicate is one (field, operator, value) clause. Predicates always
// combine with AND semantics; OR/NOT/range never reach this type, the
// extractor flags them instead.
type FilterPredicate struct {
	Field    string   `json:"field"`
	Op       Operator `json:"op"`
	Value    string   `json:"value"`
	NumValue float64  `json:"num_value,omitempty"`
}

// Intent is the aggregate shape of a structured query.
type Intent string

const (
	IntentCount   Intent = "count"
	IntentList    Intent = "list"
	IntentGroupBy Intent = "group_by"
)

// StructuredQuery is an exact, parameter-bound plan against the record
// store. GroupField is only set for group_by and is always a canonical
// schema field, never raw user text.
type StructuredQuery struct {
	Intent     Intent            `json:"intent"`
	Predicates []FilterPredicate `json:"predicates"`
	GroupField string            `json:"group_field,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// GroupCount is one (group value, count) pair of a group_by result, ordered
// by count descending then group value ascending.
type GroupCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// StructuredResult is the exact answer of the structured path.
type StructuredResult struct {
	Intent  Intent       `json:"intent"`
	Count   int64        `json:"count,omitempty"`
	Records []Record     `json:"records,omitempty"`
	Groups  []GroupCount `json:"groups,omitempty"`
}

// RetrievalCandidate tracks one text unit through the retrieval pipeline.
// Ordering at each stage is by FusedScore then RerankScore, with the
// deterministic tie chain applied in the fusion and rerank stages.
type RetrievalCandidate struct {
	Unit         TextUnit `json:"unit"`
	VectorScore  float64  `json:"vector_score"`
	LexicalScore float64  `json:"lexical_score"`
	FusedScore   float64  `json:"fused_score"`
	RerankScore  float64  `json:"rerank_score"`
}

// ContextItem is one cited passage inside a context payload.
type ContextItem struct {
	SourceID string  `json:"source_id"`
	Origin   Origin  `json:"origin"`
	Locator  string  `json:"locator,omitempty"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// SummaryStats are lightweight aggregates shipped with the payload so the
// synthesis step can qualify its answer.
type SummaryStats struct {
	CandidatesConsidered int     `json:"candidates_considered"`
	CandidatesIncluded   int     `json:"candidates_included"`
	TopScore             float64 `json:"top_score"`
	Degraded             []string `json:"degraded,omitempty"`
}

// ContextPayload is the size-bounded artifact handed to the external
// synthesis call. Items appear in rank order and each carries full
// provenance; a candidate that could not fit whole was dropped, never cut.
type ContextPayload struct {
	Items      []ContextItem     `json:"items"`
	Structured *StructuredResult `json:"structured,omitempty"`
	Stats      SummaryStats      `json:"stats"`
	TokenCount int               `json:"token_count"`
}

// AnswerResult is the single response contract of the pipeline.
type AnswerResult struct {
	Mode       Mode              `json:"mode"`
	Structured *StructuredResult `json:"structured_result,omitempty"`
	Context    *ContextPayload   `json:"context_payload,omitempty"`
	CacheHit   bool              `json:"cache_hit"`
}
