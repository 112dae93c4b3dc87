package judge

import (
	"strings"

	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/model"
)

// Normalize strips line tags, case-folds and collapses whitespace.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(corpus.StripTags(text))), " ")
}

// MatchQuote scores how much of quote appears verbatim in source. An exact
// substring, or ellipsis-separated segments found in order, score 1.0.
// Otherwise the score is the longest common substring of the normalised
// texts over the normalised quote length.
func MatchQuote(source, quote string, threshold float64) model.QuoteResult {
	result := model.QuoteResult{Threshold: threshold}

	q := Normalize(quote)
	if q == "" {
		result.Method = "empty"
		return result
	}
	s := Normalize(source)

	switch {
	case strings.Contains(s, q):
		result.Score = 1.0
		result.Method = "exact"
	case segmentsInOrder(s, quote):
		result.Score = 1.0
		result.Method = "ellipsis"
	default:
		qr := []rune(q)
		result.Score = float64(longestCommonSubstring([]rune(s), qr)) / float64(len(qr))
		result.Method = "fuzzy"
	}
	result.Match = result.Score >= threshold
	return result
}

// segmentsInOrder reports whether a quote elided with "..." or "…" has all of
// its segments in source, in order and without overlap
func segmentsInOrder(source, quote string) bool {
	quote = strings.ReplaceAll(quote, "…", "...")
	if !strings.Contains(quote, "...") {
		return false
	}

	found := 0
	pos := 0
	for _, part := range strings.Split(quote, "...") {
		seg := Normalize(part)
		if seg == "" {
			continue
		}
		i := strings.Index(source[pos:], seg)
		if i < 0 {
			return false
		}
		pos += i + len(seg)
		found++
	}
	return found > 0
}

// longestCommonSubstring returns the length in runes of the longest
// contiguous run shared by a and b
func longestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
