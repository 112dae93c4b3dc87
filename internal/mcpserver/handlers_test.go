package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ppiankov/trustbutverify/internal/audit"
	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/judge"
	"github.com/ppiankov/trustbutverify/internal/jury"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/search"
)

type fakeSearcher struct {
	mode model.SearchMode
	topK int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, mode model.SearchMode, topK int) (*search.Response, error) {
	f.mode, f.topK = mode, topK
	return &search.Response{
		Query: query,
		Mode:  mode,
		Results: []model.SearchResult{
			{Document: "m_baked.txt", StartLine: 2, EndLine: 2, Score: 1.5, MatchType: model.MatchHybrid},
		},
	}, nil
}

type validJury struct{}

func (validJury) Deliberate(ctx context.Context, ev jury.Evidence) *model.ConsensusResult {
	return &model.ConsensusResult{Verdict: model.VerdictValid, Tally: map[model.Verdict]int{model.VerdictValid: 1}}
}

func request(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func newHandlers(t *testing.T) (*Handlers, *fakeSearcher, *audit.JSONLLog) {
	t.Helper()
	store := corpus.NewMemoryStore(corpus.FromText("m_baked.txt", "Minutes\nThe budget increased by 15 percent.\nAdjourned."))
	log, err := audit.NewJSONLLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })
	findings, err := audit.NewFindingLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	searcher := &fakeSearcher{}
	h := NewHandlers(Config{
		Searcher: searcher,
		Store:    store,
		Verifier: judge.New(store, validJury{}, judge.DefaultJudgeConfig(), nil),
		Records:  log,
		Findings: findings,
	})
	return h, searcher, log
}

func TestSearch(t *testing.T) {
	h, searcher, _ := newHandlers(t)
	ctx := context.Background()

	res, err := h.Search(ctx, request(map[string]interface{}{"query": "budget", "mode": "bm25", "top_k": float64(3)}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v %s", err, text(t, res))
	}
	if searcher.mode != model.ModeBM25 || searcher.topK != 3 {
		t.Errorf("expected bm25 top 3, got %s top %d", searcher.mode, searcher.topK)
	}
	var resp search.Response
	if err := json.Unmarshal([]byte(text(t, res)), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].MatchType != model.MatchHybrid {
		t.Errorf("unexpected response %+v", resp)
	}

	res, _ = h.SearchHybrid(ctx, request(map[string]interface{}{"query": "budget"}))
	if res.IsError || searcher.mode != model.ModeHybrid || searcher.topK != 5 {
		t.Errorf("search_hybrid should default to hybrid top 5, got %s top %d", searcher.mode, searcher.topK)
	}

	res, _ = h.Search(ctx, request(map[string]interface{}{"query": "budget", "mode": "fuzzy"}))
	if !res.IsError {
		t.Error("expected error for unknown mode")
	}
	res, _ = h.Search(ctx, request(map[string]interface{}{}))
	if !res.IsError {
		t.Error("expected error without query")
	}
}

func TestReadLines(t *testing.T) {
	h, _, _ := newHandlers(t)
	ctx := context.Background()

	res, _ := h.ReadLines(ctx, request(map[string]interface{}{"filename": "m_baked.txt", "start_line": float64(2), "end_line": float64(3)}))
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	if got := text(t, res); got != "[L0002] The budget increased by 15 percent.\n[L0003] Adjourned." {
		t.Errorf("unexpected lines %q", got)
	}

	res, _ = h.ReadLines(ctx, request(map[string]interface{}{"filename": "m_baked.txt", "start_line": float64(3), "end_line": float64(9)}))
	if !res.IsError || !strings.Contains(text(t, res), "out of bounds") {
		t.Error("expected out of bounds error")
	}
}

func TestVerifyClaim(t *testing.T) {
	h, _, log := newHandlers(t)
	ctx := context.Background()

	args := map[string]interface{}{
		"claim":      "The budget rose 15%",
		"quote":      "budget increased by 15 percent",
		"filename":   "m_baked.txt",
		"start_line": float64(2),
		"end_line":   float64(2),
	}
	res, _ := h.VerifyClaim(ctx, request(args))
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	var rec model.VerificationRecord
	if err := json.Unmarshal([]byte(text(t, res)), &rec); err != nil {
		t.Fatal(err)
	}
	if !rec.Verified || rec.FinalVerdict != model.VerdictValid || rec.Sequence != 1 {
		t.Errorf("expected verified record with sequence 1, got %+v", rec)
	}

	// Failed verifications still return a full record
	args["end_line"] = float64(99)
	res, _ = h.VerifyClaim(ctx, request(args))
	if res.IsError {
		t.Fatal("domain failures should not be tool errors")
	}
	_ = json.Unmarshal([]byte(text(t, res)), &rec)
	if rec.FinalVerdict != model.VerdictLineOutOfRange {
		t.Errorf("expected LINE_OUT_OF_RANGE, got %s", rec.FinalVerdict)
	}

	stored, err := log.Records(ctx, RecordStream)
	if err != nil || len(stored) != 2 {
		t.Errorf("expected 2 logged records, got %d (%v)", len(stored), err)
	}
}

func TestVerifyClaim_SequenceSurvivesRestart(t *testing.T) {
	store := corpus.NewMemoryStore(corpus.FromText("m_baked.txt", "Minutes\nThe budget increased by 15 percent.\nAdjourned."))
	log, err := audit.OpenBadgerLog(audit.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	ctx := context.Background()

	args := map[string]interface{}{
		"claim":      "The budget rose",
		"quote":      "budget increased by 15 percent",
		"filename":   "m_baked.txt",
		"start_line": float64(2),
		"end_line":   float64(2),
	}
	verifier := judge.New(store, validJury{}, judge.DefaultJudgeConfig(), nil)

	// Two server lifetimes sharing one log and one unscoped stream
	for run := 1; run <= 2; run++ {
		h := NewHandlers(Config{Store: store, Verifier: verifier, Records: log})
		res, _ := h.VerifyClaim(ctx, request(args))
		var rec model.VerificationRecord
		if err := json.Unmarshal([]byte(text(t, res)), &rec); err != nil {
			t.Fatal(err)
		}
		if rec.Sequence != run {
			t.Errorf("run %d: expected sequence %d, got %d", run, run, rec.Sequence)
		}
	}

	stored, err := log.Records(ctx, RecordStream)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("expected both verifications persisted, got %d", len(stored))
	}
}

func TestVerifyClaim_SessionScopesStream(t *testing.T) {
	store := corpus.NewMemoryStore(corpus.FromText("m_baked.txt", "Minutes\nThe budget increased by 15 percent.\nAdjourned."))
	log, err := audit.NewJSONLLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	h := NewHandlers(Config{
		Store:    store,
		Verifier: judge.New(store, validJury{}, judge.DefaultJudgeConfig(), nil),
		Records:  log,
		Session:  "abc",
	})
	if h.Stream() != "mcp-abc" {
		t.Fatalf("expected stream mcp-abc, got %s", h.Stream())
	}
	res, _ := h.VerifyClaim(context.Background(), request(map[string]interface{}{
		"claim":      "The budget rose",
		"quote":      "budget increased by 15 percent",
		"filename":   "m_baked.txt",
		"start_line": float64(2),
		"end_line":   float64(2),
	}))
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	if stored, _ := log.Records(context.Background(), "mcp-abc"); len(stored) != 1 {
		t.Errorf("expected 1 record in the session stream, got %d", len(stored))
	}
	if stored, _ := log.Records(context.Background(), RecordStream); len(stored) != 0 {
		t.Errorf("expected the unscoped stream untouched, got %d", len(stored))
	}
}

func TestLogFinding(t *testing.T) {
	h, _, _ := newHandlers(t)
	res, _ := h.LogFinding(context.Background(), request(map[string]interface{}{
		"topic_id":    "budget",
		"quoted_text": "increased by 15 percent",
		"source_file": "m_baked.txt",
		"line_start":  float64(2),
		"line_end":    float64(2),
		"confidence":  "High",
	}))
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	var f model.Finding
	_ = json.Unmarshal([]byte(text(t, res)), &f)
	if f.ID == "" || f.Confidence != "High" {
		t.Errorf("unexpected finding %+v", f)
	}

	res, _ = h.LogFinding(context.Background(), request(map[string]interface{}{
		"topic_id":    "budget",
		"quoted_text": "q",
		"source_file": "m_baked.txt",
	}))
	if !res.IsError {
		t.Error("expected error for missing line range")
	}
}

func TestNilDependencies(t *testing.T) {
	h := NewHandlers(Config{})
	ctx := context.Background()
	for name, call := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"search":       h.Search,
		"read_lines":   h.ReadLines,
		"verify_claim": h.VerifyClaim,
		"log_finding":  h.LogFinding,
	} {
		res, err := call(ctx, request(map[string]interface{}{"query": "x"}))
		if err != nil || !res.IsError {
			t.Errorf("%s: expected tool error, got %v", name, err)
		}
	}
}

func TestNew(t *testing.T) {
	h, _, _ := newHandlers(t)
	if New(h, "test") == nil {
		t.Fatal("expected server")
	}
}
