package model

import "fmt"

// Citation points at an inclusive line range of one canonical document
type Citation struct {
	Filename  string `json:"filename"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// String renders the citation in report form, e.g. "minutes_baked.txt:L12-L14"
func (c Citation) String() string {
	if c.StartLine == c.EndLine {
		return fmt.Sprintf("%s:L%d", c.Filename, c.StartLine)
	}
	return fmt.Sprintf("%s:L%d-L%d", c.Filename, c.StartLine, c.EndLine)
}

// Claim is a written assertion, the literal quote it relies on, and where the quote should be found
type Claim struct {
	Text     string   `json:"claim"`
	Quote    string   `json:"quote"`
	Citation Citation `json:"citation"`
}

// Finding is an evidence clip logged by an investigator against a topic
type Finding struct {
	ID         string `json:"id"`
	TopicID    string `json:"topic_id"`
	Claim      string `json:"claim_summary"`
	Quote      string `json:"quoted_text"`
	Source     string `json:"source_file"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	Confidence string `json:"confidence"` // "High", "Medium", "Low"
}
