package jury

import (
	"strings"
	"testing"

	"github.com/ppiankov/trustbutverify/internal/model"
)

const validJSON = `{"verdict":"VALID","quote_sufficient":true,"same_context":true,"logical_support":false,"rationale":" ok "}`

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		verdict model.Verdict
		errPart string
	}{
		{"plain", validJSON, model.VerdictValid, ""},
		{"json fence", "```json\n" + validJSON + "\n```", model.VerdictValid, ""},
		{"bare fence", "```\n" + validJSON + "\n```", model.VerdictValid, ""},
		{"inline fence", "```json" + validJSON + "```", model.VerdictValid, ""},
		{"lowercase verdict", strings.Replace(validJSON, "VALID", "misleading", 1), model.VerdictMisleading, ""},
		{"unknown verdict", strings.Replace(validJSON, "VALID", "PROBABLY", 1), "", "unknown verdict"},
		{"non-votable verdict", strings.Replace(validJSON, "VALID", "HUNG_JURY", 1), "", "unknown verdict"},
		{"missing field", `{"verdict":"VALID","quote_sufficient":true}`, "", "missing fields: same_context, logical_support"},
		{"string boolean", strings.Replace(validJSON, `"same_context":true`, `"same_context":"yes"`, 1), "", "invalid JSON"},
		{"prose", "I think the claim is valid.", "", "invalid JSON"},
		{"empty", "  ", "", "empty response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse("j1", tt.raw)
			if got.Juror != "j1" {
				t.Errorf("expected juror j1, got %s", got.Juror)
			}
			if tt.errPart != "" {
				if !strings.Contains(got.Error, tt.errPart) {
					t.Errorf("expected error containing %q, got %q", tt.errPart, got.Error)
				}
				if got.Responded() {
					t.Error("invalid response must not vote")
				}
				return
			}
			if got.Error != "" {
				t.Fatalf("unexpected error %q", got.Error)
			}
			if got.Verdict != tt.verdict {
				t.Errorf("expected %s, got %s", tt.verdict, got.Verdict)
			}
		})
	}
}

func TestParseResponse_Fields(t *testing.T) {
	got := ParseResponse("j", validJSON)
	if !got.QuoteSufficient || !got.SameContext || got.LogicalSupport {
		t.Errorf("unexpected booleans %+v", got)
	}
	if got.Rationale != "ok" {
		t.Errorf("expected trimmed rationale, got %q", got.Rationale)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Evidence{
		Filename:      "memo_baked.txt",
		StartLine:     10,
		EndLine:       12,
		ContextBefore: "before text",
		CitedText:     "cited text",
		Claim:         "the claim",
		Quote:         "the quote",
	})
	for _, want := range []string{"memo_baked.txt, lines 10-12", "before text", "cited text", "(none)", `"the claim"`, `"the quote"`, `"verdict"`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
