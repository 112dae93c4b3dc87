package judge

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/jury"
	"github.com/ppiankov/trustbutverify/internal/model"
)

// fixedJury returns the same verdict for every deliberation
type fixedJury struct {
	verdict model.Verdict
	calls   int32
	last    jury.Evidence
}

func (f *fixedJury) Deliberate(ctx context.Context, ev jury.Evidence) *model.ConsensusResult {
	atomic.AddInt32(&f.calls, 1)
	f.last = ev
	return &model.ConsensusResult{Verdict: f.verdict, Tally: map[model.Verdict]int{f.verdict: 1}, Responding: 1, Panel: 1}
}

func memoDoc() *model.CanonicalDocument {
	rows := []string{
		"City Council Minutes",
		"Present: all members.",
		"The mayor opened the session at 9am.",
		"Finance report follows.",
		"The budget increased by 15 percent over last year.",
		"Most of the increase funds road repair.",
		"Questions were taken from the floor.",
		"A member asked about parks.",
		"The clerk read the correspondence.",
		"Weather delayed the site visit.",
		"Next meeting is in June.",
		"Adjourned.",
	}
	return corpus.FromText("minutes_baked.txt", strings.Join(rows, "\n"))
}

func newJudge(verdict model.Verdict) (*Judge, *fixedJury) {
	j := &fixedJury{verdict: verdict}
	return New(corpus.NewMemoryStore(memoDoc()), j, DefaultJudgeConfig(), nil), j
}

func TestVerify_CitedLineCount(t *testing.T) {
	judge, _ := newJudge(model.VerdictValid)
	ctx := context.Background()
	max := memoDoc().MaxLine()

	for start := 1; start <= max; start++ {
		for end := start; end <= max; end++ {
			res := judge.CheckExistence(ctx, "minutes_baked.txt", start, end)
			if !res.Passed {
				t.Fatalf("L%d-L%d: expected pass, got %s", start, end, res.Verdict)
			}
			if got := strings.Count(res.CitedText, "\n") + 1; got != end-start+1 {
				t.Errorf("L%d-L%d: expected %d lines, got %d", start, end, end-start+1, got)
			}
			if !strings.HasPrefix(res.CitedText, model.Tag(start)) {
				t.Errorf("L%d-L%d: cited text should start with its tag", start, end)
			}
		}
	}
}

func TestVerify_LineOutOfRange(t *testing.T) {
	judge, fj := newJudge(model.VerdictValid)
	tests := []struct{ start, end int }{
		{13, 13},
		{13, 20},
		{5, 4},
		{0, 3},
		{-1, 2},
		{10, 13},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("L%d-L%d", tt.start, tt.end), func(t *testing.T) {
			rec := judge.Verify(context.Background(), "claim", "quote", "minutes_baked.txt", tt.start, tt.end)
			if rec.FinalVerdict != model.VerdictLineOutOfRange {
				t.Errorf("expected LINE_OUT_OF_RANGE, got %s", rec.FinalVerdict)
			}
			if rec.Existence.Passed || rec.Quote != nil || rec.Consensus != nil {
				t.Error("phases 2 and 3 must not run")
			}
			if rec.Verified {
				t.Error("record must not be verified")
			}
			if !strings.Contains(rec.Existence.Error, "out of bounds (file has 12 lines)") {
				t.Errorf("unexpected error text %q", rec.Existence.Error)
			}
		})
	}
	if atomic.LoadInt32(&fj.calls) != 0 {
		t.Errorf("jury called %d times", fj.calls)
	}
}

func TestVerify_FileNotFound(t *testing.T) {
	judge, fj := newJudge(model.VerdictValid)
	rec := judge.Verify(context.Background(), "claim", "quote", "missing_baked.txt", 1, 1)
	if rec.FinalVerdict != model.VerdictFileNotFound {
		t.Errorf("expected FILE_NOT_FOUND, got %s", rec.FinalVerdict)
	}
	if rec.Quote != nil || rec.Consensus != nil || fj.calls != 0 {
		t.Error("phases 2 and 3 must not run")
	}
	if rec.ID == "" || rec.VerifiedAt.IsZero() {
		t.Error("record must be complete even on failure")
	}
}

func TestVerify_ExactQuoteValid(t *testing.T) {
	judge, fj := newJudge(model.VerdictValid)
	rec := judge.Verify(context.Background(),
		"The budget rose 15%.",
		"budget increased by 15 percent",
		"minutes_baked.txt", 5, 5)

	if rec.Quote == nil || rec.Quote.Score != 1.0 || !rec.Quote.Match {
		t.Fatalf("expected exact match with score 1.0, got %+v", rec.Quote)
	}
	if rec.FinalVerdict != model.VerdictValid || !rec.Verified {
		t.Errorf("expected verified VALID, got %s / %v", rec.FinalVerdict, rec.Verified)
	}
	if rec.CitedText != "[L0005] The budget increased by 15 percent over last year." {
		t.Errorf("unexpected cited text %q", rec.CitedText)
	}
	if fj.last.ContextBefore == "" || fj.last.ContextAfter == "" {
		t.Error("jury should receive surrounding context")
	}
	if got := strings.Count(fj.last.ContextBefore, "\n") + 1; got != 4 {
		t.Errorf("expected 4 context lines before L5, got %d", got)
	}
	if got := strings.Count(fj.last.ContextAfter, "\n") + 1; got != 5 {
		t.Errorf("expected 5 context lines after L5, got %d", got)
	}
}

func TestVerify_QuoteNotFoundOverridesJury(t *testing.T) {
	judge, fj := newJudge(model.VerdictValid)
	rec := judge.Verify(context.Background(),
		"Revenue doubled.",
		"zzzz qqqq jjjj",
		"minutes_baked.txt", 5, 6)

	if rec.Quote.Match || rec.Quote.Score > 0.2 {
		t.Errorf("expected near-zero non-match, got %+v", rec.Quote)
	}
	if rec.FinalVerdict != model.VerdictQuoteNotFound || rec.Verified {
		t.Errorf("expected unverified QUOTE_NOT_FOUND, got %s", rec.FinalVerdict)
	}
	if rec.Consensus == nil || rec.Consensus.Verdict != model.VerdictValid {
		t.Error("phase 3 should still run and be recorded")
	}
	if atomic.LoadInt32(&fj.calls) != 1 {
		t.Errorf("expected one jury call, got %d", fj.calls)
	}
}

func TestVerify_QuoteFromContextBefore(t *testing.T) {
	judge, _ := newJudge(model.VerdictValid)
	rec := judge.Verify(context.Background(), "The session opened at 9.", "mayor opened the session", "minutes_baked.txt", 5, 5)
	if !rec.Quote.Match {
		t.Errorf("quote within the preceding context should match, got %+v", rec.Quote)
	}
}

func TestVerify_JuryVerdictPassesThrough(t *testing.T) {
	for _, v := range []model.Verdict{model.VerdictMisleading, model.VerdictHungJury, model.VerdictLLMError} {
		judge, _ := newJudge(v)
		rec := judge.Verify(context.Background(), "claim", "road repair", "minutes_baked.txt", 6, 6)
		if rec.FinalVerdict != v || rec.Verified {
			t.Errorf("expected unverified %s, got %s", v, rec.FinalVerdict)
		}
	}
}

func TestVerify_NoJury(t *testing.T) {
	judge := New(corpus.NewMemoryStore(memoDoc()), nil, DefaultJudgeConfig(), nil)
	rec := judge.Verify(context.Background(), "claim", "road repair", "minutes_baked.txt", 6, 6)
	if rec.FinalVerdict != model.VerdictLLMError {
		t.Errorf("expected LLM_ERROR without a jury, got %s", rec.FinalVerdict)
	}
}
