package model

import (
	"fmt"
	"strings"
)

// Line is a single tagged line of a canonical document
type Line struct {
	Number int    `json:"number"` // 1-based, assigned at bake time and never renumbered
	Text   string `json:"text"`   // Line content without the [Lnnnn] tag
}

// Tag returns the canonical tag for a line number, e.g. "[L0042]"
func Tag(number int) string {
	return fmt.Sprintf("[L%04d]", number)
}

// Tagged returns the line as it appears in the baked file
func (l Line) Tagged() string {
	return Tag(l.Number) + " " + l.Text
}

// CanonicalDocument is an immutable, line-tagged derivative of a raw source file
type CanonicalDocument struct {
	Filename string `json:"filename"`
	Lines    []Line `json:"lines"`
}

// MaxLine returns the highest line number in the document (0 when empty)
func (d *CanonicalDocument) MaxLine() int {
	if len(d.Lines) == 0 {
		return 0
	}
	return d.Lines[len(d.Lines)-1].Number
}

// InRange reports whether 1 <= start <= end <= MaxLine
func (d *CanonicalDocument) InRange(start, end int) bool {
	return start >= 1 && start <= end && end <= d.MaxLine()
}

// Slice returns lines start..end inclusive. Line numbers equal their
// position, which corpus.Parse enforces. Out of range bounds are clamped.
func (d *CanonicalDocument) Slice(start, end int) []Line {
	if start < 1 {
		start = 1
	}
	if end > d.MaxLine() {
		end = d.MaxLine()
	}
	if start > end {
		return nil
	}
	return d.Lines[start-1 : end]
}

// JoinTagged renders lines back into baked form, one per row
func JoinTagged(lines []Line) string {
	rows := make([]string, len(lines))
	for i, l := range lines {
		rows[i] = l.Tagged()
	}
	return strings.Join(rows, "\n")
}

// JoinText renders line contents without tags
func JoinText(lines []Line) string {
	rows := make([]string, len(lines))
	for i, l := range lines {
		rows[i] = l.Text
	}
	return strings.Join(rows, "\n")
}

// Chunk is a contiguous line range of one document, the unit of retrieval
type Chunk struct {
	ID        int       `json:"id"`
	Document  string    `json:"document"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Text      string    `json:"text"`                // Untagged text of the range
	Embedding []float64 `json:"embedding,omitempty"` // Dense vector, nil for keyword-only indexes
}
