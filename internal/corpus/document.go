package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/trustbutverify/internal/model"
)

var (
	// ErrFileNotFound means the cited document does not exist in the corpus
	ErrFileNotFound = errors.New("file not found")

	// ErrLineOutOfRange means a citation falls outside the document bounds
	ErrLineOutOfRange = errors.New("line out of range")

	// ErrMalformed means a canonical file does not carry consistent line tags
	ErrMalformed = errors.New("malformed canonical document")

	// ErrInvalidPath means a filename escapes the corpus root
	ErrInvalidPath = errors.New("invalid corpus path")
)

// tagPattern matches the leading [Lnnnn] tag and the single separator space
var tagPattern = regexp.MustCompile(`^\[L(\d+)\] ?`)

// Parse reads a baked file. Every line must carry a tag equal to its
// position, which is what keeps citations stable.
func Parse(filename string, r io.Reader) (*model.CanonicalDocument, error) {
	doc := &model.CanonicalDocument{Filename: filename}
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if len(raw) > 0 {
			line, perr := parseLine(strings.TrimSuffix(raw, "\n"), len(doc.Lines)+1)
			if perr != nil {
				return nil, fmt.Errorf("%s: %w", filename, perr)
			}
			doc.Lines = append(doc.Lines, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}
	}
	return doc, nil
}

func parseLine(raw string, want int) (model.Line, error) {
	m := tagPattern.FindStringSubmatchIndex(raw)
	if m == nil {
		return model.Line{}, fmt.Errorf("%w: line %d has no [Lnnnn] tag", ErrMalformed, want)
	}
	n, err := strconv.Atoi(raw[m[2]:m[3]])
	if err != nil {
		return model.Line{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, want, err)
	}
	if n != want {
		return model.Line{}, fmt.Errorf("%w: line %d tagged as %s", ErrMalformed, want, model.Tag(n))
	}
	return model.Line{Number: n, Text: raw[m[1]:]}, nil
}

// StripTags removes every [Lnnnn] tag (plus trailing whitespace) from text
func StripTags(text string) string {
	return inlineTagPattern.ReplaceAllString(text, "")
}

var inlineTagPattern = regexp.MustCompile(`\[L\d{4,}\]\s*`)

// Lines returns the cited lines start..end of doc
func Lines(doc *model.CanonicalDocument, start, end int) ([]model.Line, error) {
	if !doc.InRange(start, end) {
		return nil, fmt.Errorf("%w: lines %d-%d out of bounds (file has %d lines)", ErrLineOutOfRange, start, end, doc.MaxLine())
	}
	return doc.Slice(start, end), nil
}
