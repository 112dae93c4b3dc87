package report

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// DefaultContextWindow is how many characters before the previous citation
// are carried into a claim
const DefaultContextWindow = 300

// Extraction is the outcome of scanning one report
type Extraction struct {
	Items  []Item
	Errors []model.ParseError
}

// Item is a well-formed citation with its reconstructed claim
type Item struct {
	Sequence int
	Claim    model.Claim
}

// Extract parses citations and rebuilds the claim each one supports. The
// claim is the prose since the previous citation or section start, prefixed
// with the nearest header and up to window characters preceding the
// previous citation. The quote is that prose span alone.
func Extract(text, root string, window int) Extraction {
	if window < 0 {
		window = 0
	}
	var out Extraction

	refs := ParseCitations(text, root)
	prevStart, prevEnd := -1, 0
	for _, ref := range refs {
		if ref.Err != nil {
			out.Errors = append(out.Errors, model.ParseError{
				Sequence: ref.Sequence,
				Raw:      ref.Raw,
				Offset:   ref.Start,
				Error:    ref.Err.Error(),
			})
			prevStart, prevEnd = ref.Start, ref.End
			continue
		}

		spanStart := prevEnd
		header, headerEnd := nearestHeader(text, ref.Start)
		sectionBreak := headerEnd > prevEnd
		if sectionBreak {
			spanStart = headerEnd
		}
		span := clean(text[spanStart:ref.Start])

		var parts []string
		if header != "" {
			parts = append(parts, header)
		}
		if !sectionBreak && prevStart >= 0 {
			from := clampRuneStart(text, prevStart-window)
			if rolling := clean(text[from:prevStart]); rolling != "" {
				parts = append(parts, rolling)
			}
		}
		if span != "" {
			parts = append(parts, span)
		}

		out.Items = append(out.Items, Item{
			Sequence: ref.Sequence,
			Claim: model.Claim{
				Text:     strings.Join(parts, " "),
				Quote:    span,
				Citation: ref.Citation,
			},
		})
		prevStart, prevEnd = ref.Start, ref.End
	}
	return out
}

// nearestHeader returns the last markdown header line starting before pos
// and the offset just past it
func nearestHeader(text string, pos int) (string, int) {
	lineStart := 0
	header, end := "", -1
	for lineStart < pos {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}
		line := strings.TrimSpace(text[lineStart:lineEnd])
		if strings.HasPrefix(line, "#") && lineEnd <= pos {
			header = strings.TrimSpace(strings.TrimLeft(line, "#"))
			end = lineEnd
		}
		lineStart = lineEnd + 1
	}
	return header, end
}

// clean strips citation markup and markdown noise, collapsing whitespace
func clean(s string) string {
	s = Strip(s)
	var rows []string
	for _, row := range strings.Split(s, "\n") {
		row = strings.TrimSpace(row)
		if strings.HasPrefix(row, "#") {
			continue
		}
		row = strings.TrimLeft(row, ">-*+ ")
		rows = append(rows, row)
	}
	s = strings.Join(strings.Fields(strings.Join(rows, " ")), " ")
	s = strings.TrimLeft(s, ".,;:) ")
	return strings.Trim(s, " \"“”*_")
}

// clampRuneStart moves i forward to a rune boundary within text
func clampRuneStart(text string, i int) int {
	if i <= 0 {
		return 0
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}
