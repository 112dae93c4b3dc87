package model

import "time"

// ParseError records a citation in a report that could not be turned into a claim
type ParseError struct {
	Sequence int    `json:"sequence"`
	Raw      string `json:"raw"`
	Offset   int    `json:"offset"`
	Error    string `json:"error"`
}

// BatchSummary is the write-once artifact of one report verification run
type BatchSummary struct {
	Report           string               `json:"report"`
	Session          string               `json:"session"`
	StartedAt        time.Time            `json:"started_at"`
	FinishedAt       time.Time            `json:"finished_at"`
	Total            int                  `json:"total_citations"`
	Counts           map[Verdict]int      `json:"counts"`
	Verified         int                  `json:"verified"`
	VerificationRate float64              `json:"verification_rate"` // Verified / verified records, 0 when none
	Cancelled        bool                 `json:"cancelled,omitempty"`
	ParseErrors      []ParseError         `json:"parse_errors"`
	Records          []VerificationRecord `json:"records"`
}

// Tally recomputes Counts, Verified and VerificationRate from Records
func (s *BatchSummary) Tally() {
	s.Counts = make(map[Verdict]int)
	s.Verified = 0
	for _, r := range s.Records {
		s.Counts[r.FinalVerdict]++
		if r.Verified {
			s.Verified++
		}
	}
	if len(s.ParseErrors) > 0 {
		s.Counts[VerdictCitationInvalid] = len(s.ParseErrors)
	}
	s.VerificationRate = 0
	if len(s.Records) > 0 {
		s.VerificationRate = float64(s.Verified) / float64(len(s.Records))
	}
}
