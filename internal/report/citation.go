package report

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/model"
)

// ErrMalformedCitation is wrapped by every citation parse failure
var ErrMalformedCitation = errors.New("malformed citation")

// Reference is one citation found in a report. Err is set when the
// citation looked like one but could not be parsed.
type Reference struct {
	Sequence int
	Raw      string
	Start    int // Byte offset of the citation in the report text
	End      int
	Citation model.Citation
	Err      error
}

var (
	// Anything shaped like [name:L...] optionally followed by a (link)
	candidatePattern = regexp.MustCompile(`\[([^\[\]\n]*?):L([^\]\n]*)\](?:\(([^)\s]*)\))?`)
	rangeLines       = regexp.MustCompile(`^(\d+)-L(\d+)$`)
	singleLine       = regexp.MustCompile(`^(\d+)$`)
	anchorPattern    = regexp.MustCompile(`#L(\d+)(?:-L\d+)?$`)
)

// ParseCitations finds every citation in text, in order of appearance,
// numbering them from 1. Link targets are resolved against root when root
// is non-empty.
func ParseCitations(text, root string) []Reference {
	matches := candidatePattern.FindAllStringSubmatchIndex(text, -1)
	refs := make([]Reference, 0, len(matches))
	for i, m := range matches {
		ref := Reference{
			Sequence: i + 1,
			Raw:      text[m[0]:m[1]],
			Start:    m[0],
			End:      m[1],
		}
		name := strings.TrimSpace(text[m[2]:m[3]])
		lines := text[m[4]:m[5]]
		link := ""
		if m[6] >= 0 {
			link = text[m[6]:m[7]]
		}

		ref.Citation, ref.Err = parseCitation(name, lines, link, root)
		refs = append(refs, ref)
	}
	return refs
}

func parseCitation(name, lines, link, root string) (model.Citation, error) {
	c := model.Citation{Filename: name}
	if name == "" {
		return c, fmt.Errorf("%w: missing filename", ErrMalformedCitation)
	}

	var err error
	if g := rangeLines.FindStringSubmatch(lines); g != nil {
		c.StartLine, err = strconv.Atoi(g[1])
		if err == nil {
			c.EndLine, err = strconv.Atoi(g[2])
		}
	} else if g := singleLine.FindStringSubmatch(lines); g != nil {
		c.StartLine, err = strconv.Atoi(g[1])
		c.EndLine = c.StartLine
	} else {
		return c, fmt.Errorf("%w: bad line reference L%s", ErrMalformedCitation, lines)
	}
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrMalformedCitation, err)
	}
	if c.StartLine < 1 {
		return c, fmt.Errorf("%w: line numbers start at 1", ErrMalformedCitation)
	}

	if link != "" {
		if a := anchorPattern.FindStringSubmatch(link); a != nil {
			if n, _ := strconv.Atoi(a[1]); n != c.StartLine {
				return c, fmt.Errorf("%w: anchor #L%d does not match L%d", ErrMalformedCitation, n, c.StartLine)
			}
		}
		if root != "" {
			if resolved, ok := corpus.ResolveCitationPath(root, link); ok {
				c.Filename = resolved
			}
		}
	}
	return c, nil
}

// Strip removes citation markup from text
func Strip(text string) string {
	return candidatePattern.ReplaceAllString(text, "")
}
