package model

// SearchMode selects the retrieval strategy
type SearchMode string

const (
	ModeExhaustive SearchMode = "exhaustive"
	ModeBM25       SearchMode = "bm25"
	ModeVector     SearchMode = "vector"
	ModeHybrid     SearchMode = "hybrid"
)

// MatchType describes how a result was found
type MatchType string

const (
	MatchExact    MatchType = "exact_match"
	MatchSemantic MatchType = "semantic_context"
	MatchHybrid   MatchType = "hybrid_pinpoint"
)

// SearchResult is one ranked hit
type SearchResult struct {
	Document  string    `json:"document"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Score     float64   `json:"score"`
	MatchType MatchType `json:"match_type"`
	Text      string    `json:"text,omitempty"`
}
