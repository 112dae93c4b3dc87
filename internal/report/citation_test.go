package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/trustbutverify/internal/model"
)

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Citation
		bad  bool
	}{
		{"range with link", "See [minutes_baked.txt:L12-L14](minutes_baked.txt#L12).", model.Citation{Filename: "minutes_baked.txt", StartLine: 12, EndLine: 14}, false},
		{"single line", "As recorded [minutes_baked.txt:L7].", model.Citation{Filename: "minutes_baked.txt", StartLine: 7, EndLine: 7}, false},
		{"range without link", "[a_baked.txt:L1-L3]", model.Citation{Filename: "a_baked.txt", StartLine: 1, EndLine: 3}, false},
		{"reversed range is well formed", "[a_baked.txt:L9-L3]", model.Citation{Filename: "a_baked.txt", StartLine: 9, EndLine: 3}, false},
		{"letters", "[a_baked.txt:Lx-L3]", model.Citation{}, true},
		{"zero line", "[a_baked.txt:L0]", model.Citation{}, true},
		{"missing filename", "[:L4]", model.Citation{}, true},
		{"anchor mismatch", "[a_baked.txt:L4-L5](a_baked.txt#L9)", model.Citation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := ParseCitations(tt.text, "")
			if len(refs) != 1 {
				t.Fatalf("expected 1 reference, got %d", len(refs))
			}
			ref := refs[0]
			if tt.bad {
				if !errors.Is(ref.Err, ErrMalformedCitation) {
					t.Errorf("expected ErrMalformedCitation, got %v", ref.Err)
				}
				return
			}
			if ref.Err != nil {
				t.Fatalf("unexpected error: %v", ref.Err)
			}
			if ref.Citation != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, ref.Citation)
			}
			if tt.text[ref.Start:ref.End] != ref.Raw {
				t.Errorf("offsets do not match raw text %q", ref.Raw)
			}
		})
	}
}

func TestParseCitations_IgnoresOrdinaryLinks(t *testing.T) {
	text := "A [plain link](https://example.com) and [a note] then [f_baked.txt:L2]."
	refs := ParseCitations(text, "")
	if len(refs) != 1 || refs[0].Citation.StartLine != 2 {
		t.Errorf("expected only the citation, got %+v", refs)
	}
}

func TestParseCitations_ResolvesLinkAgainstRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "city"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "city", "minutes_baked.txt"), []byte("[L0001] x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	refs := ParseCitations("[minutes_baked.txt:L1-L1](city/minutes_baked.txt#L1)", root)
	if refs[0].Err != nil {
		t.Fatal(refs[0].Err)
	}
	if refs[0].Citation.Filename != "city/minutes_baked.txt" {
		t.Errorf("expected link to resolve to city/minutes_baked.txt, got %s", refs[0].Citation.Filename)
	}
}

func TestStrip(t *testing.T) {
	got := Strip("Budget rose [m_baked.txt:L5-L5](m_baked.txt#L5) sharply [m_baked.txt:L6].")
	if got != "Budget rose  sharply ." {
		t.Errorf("unexpected strip result %q", got)
	}
}
