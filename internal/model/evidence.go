package model

import "time"

// Verdict is the terminal classification of claim support
type Verdict string

const (
	VerdictValid           Verdict = "VALID"
	VerdictMisleading      Verdict = "MISLEADING"
	VerdictInsufficient    Verdict = "INSUFFICIENT"
	VerdictUnsupported     Verdict = "UNSUPPORTED"
	VerdictQuoteNotFound   Verdict = "QUOTE_NOT_FOUND"
	VerdictHungJury        Verdict = "HUNG_JURY"
	VerdictLLMError        Verdict = "LLM_ERROR"
	VerdictFileNotFound    Verdict = "FILE_NOT_FOUND"
	VerdictLineOutOfRange  Verdict = "LINE_OUT_OF_RANGE"
	VerdictCitationInvalid Verdict = "CITATION_PARSE_ERROR" // Batch only, never returned by the judge
)

// JurorVerdicts are the only verdicts a juror may vote for
var JurorVerdicts = []Verdict{VerdictValid, VerdictMisleading, VerdictInsufficient, VerdictUnsupported}

// IsJurorVerdict reports whether v is a votable verdict
func IsJurorVerdict(v Verdict) bool {
	for _, jv := range JurorVerdicts {
		if v == jv {
			return true
		}
	}
	return false
}

// AllVerdicts lists every verdict in a stable display order
var AllVerdicts = []Verdict{
	VerdictValid, VerdictMisleading, VerdictInsufficient, VerdictUnsupported,
	VerdictQuoteNotFound, VerdictHungJury, VerdictLLMError,
	VerdictFileNotFound, VerdictLineOutOfRange,
}

// JurorResponse is one juror's validated answer. A non-empty Error means the
// juror timed out, failed, or answered outside the schema, and its vote is excluded.
type JurorResponse struct {
	Juror           string        `json:"juror"`
	Verdict         Verdict       `json:"verdict,omitempty"`
	QuoteSufficient bool          `json:"quote_sufficient"` // Quote has at least 5 words
	SameContext     bool          `json:"same_context"`     // Quote used in the same sense as the source
	LogicalSupport  bool          `json:"logical_support"`  // Source logically supports the claim
	Rationale       string        `json:"rationale,omitempty"`
	Error           string        `json:"error,omitempty"`
	Attempts        int           `json:"attempts"`
	Latency         time.Duration `json:"latency_ns"`
}

// Responded reports whether the juror produced a votable answer
func (r JurorResponse) Responded() bool {
	return r.Error == "" && IsJurorVerdict(r.Verdict)
}

// ExistenceResult is the outcome of phase 1
type ExistenceResult struct {
	Passed        bool    `json:"passed"`
	Verdict       Verdict `json:"verdict,omitempty"` // FILE_NOT_FOUND or LINE_OUT_OF_RANGE on failure
	Error         string  `json:"error,omitempty"`
	MaxLine       int     `json:"max_line,omitempty"`
	CitedText     string  `json:"cited_text,omitempty"`
	ContextBefore string  `json:"context_before,omitempty"`
	ContextAfter  string  `json:"context_after,omitempty"`
}

// QuoteResult is the outcome of phase 2. Score is always recorded.
type QuoteResult struct {
	Match     bool    `json:"match"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Method    string  `json:"method"` // "exact", "ellipsis", "fuzzy", "empty"
}

// ConsensusResult is the outcome of phase 3
type ConsensusResult struct {
	Verdict         Verdict         `json:"verdict"`
	Tally           map[Verdict]int `json:"tally"`
	Responding      int             `json:"responding"`
	Panel           int             `json:"panel"`
	Unanimous       bool            `json:"unanimous"`
	QuoteSufficient bool            `json:"quote_sufficient"`
	SameContext     bool            `json:"same_context"`
	LogicalSupport  bool            `json:"logical_support"`
	Rationale       string          `json:"rationale"`
	Jurors          []JurorResponse `json:"jurors"`
	PromptIndex     int             `json:"prompt_index"`
}

// VerificationRecord is the full outcome of one judge invocation.
// It is appended to the audit log once and never mutated.
type VerificationRecord struct {
	ID           string           `json:"id"`
	Sequence     int              `json:"sequence"`
	Claim        Claim            `json:"input"`
	Existence    ExistenceResult  `json:"phase_1_existence"`
	Quote        *QuoteResult     `json:"phase_2_quote,omitempty"`
	Consensus    *ConsensusResult `json:"phase_3_consensus,omitempty"`
	FinalVerdict Verdict          `json:"final_verdict"`
	Verified     bool             `json:"verified"`
	CitedText    string           `json:"cited_text,omitempty"`
	VerifiedAt   time.Time        `json:"verified_at"`
}
