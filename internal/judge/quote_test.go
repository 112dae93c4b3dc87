package judge

import (
	"testing"
)

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"  Hello   World  ",
		"[L0001] The Budget\n[L0002]   increased",
		"Tabs\tand\r\nnewlines",
		"[L[L0001]0002] nested tags",
		"ÜNICODE Ärger … ellipsis",
		"[L12345] wide tag",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	if got := Normalize("[L0001] The  Budget\n[L0002] INCREASED"); got != "the budget increased" {
		t.Errorf("unexpected normalization %q", got)
	}
}

func TestMatchQuote(t *testing.T) {
	source := "[L0004] Finance report follows.\n[L0005] The budget increased by 15 percent over last year."
	tests := []struct {
		name   string
		quote  string
		match  bool
		method string
		score  float64 // checked when >= 0
	}{
		{"exact", "budget increased by 15 percent", true, "exact", 1.0},
		{"case and spacing", "The  BUDGET\nincreased", true, "exact", 1.0},
		{"with tags", "[L0005] The budget", true, "exact", 1.0},
		{"ellipsis", "Finance report ... 15 percent over", true, "ellipsis", 1.0},
		{"unicode ellipsis", "budget…last year", true, "ellipsis", 1.0},
		{"ellipsis out of order", "last year ... finance report", false, "fuzzy", -1},
		{"small typo", "the budget increased by 15 percent over last yer", true, "fuzzy", -1},
		{"unrelated", "zzzz qqqq", false, "fuzzy", -1},
		{"empty", "   ", false, "empty", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchQuote(source, tt.quote, 0.8)
			if got.Match != tt.match {
				t.Errorf("expected match=%v, got %+v", tt.match, got)
			}
			if got.Method != tt.method {
				t.Errorf("expected method %s, got %s", tt.method, got.Method)
			}
			if tt.score >= 0 && got.Score != tt.score {
				t.Errorf("expected score %f, got %f", tt.score, got.Score)
			}
			if got.Threshold != 0.8 {
				t.Errorf("threshold not recorded")
			}
		})
	}
}

func TestMatchQuote_ScoreRecordedBelowThreshold(t *testing.T) {
	got := MatchQuote("the budget increased", "the budget decreased sharply", 0.8)
	if got.Match {
		t.Fatal("expected no match")
	}
	if got.Score <= 0 || got.Score >= 0.8 {
		t.Errorf("expected a partial score, got %f", got.Score)
	}
}

func TestLongestCommonSubstring(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 0},
		{"abcdef", "zcdez", 3},
		{"same", "same", 4},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := longestCommonSubstring([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("lcs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
