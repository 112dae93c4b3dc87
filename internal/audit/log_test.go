package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/trustbutverify/internal/model"
)

func record(verdict model.Verdict) *model.VerificationRecord {
	return &model.VerificationRecord{
		ID:           string(verdict),
		FinalVerdict: verdict,
		Verified:     verdict == model.VerdictValid,
	}
}

// exerciseLog checks ordering and isolation for any Log implementation
func exerciseLog(t *testing.T, log Log) {
	t.Helper()
	ctx := context.Background()

	// Concurrent out-of-order appends
	var wg sync.WaitGroup
	for seq := 10; seq >= 1; seq-- {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			verdict := model.VerdictValid
			if seq%2 == 0 {
				verdict = model.VerdictHungJury
			}
			if err := log.Append(ctx, "report.md", seq, record(verdict)); err != nil {
				t.Errorf("append %d: %v", seq, err)
			}
		}(seq)
	}
	wg.Wait()

	if err := log.Append(ctx, "other.md", 1, record(model.VerdictLLMError)); err != nil {
		t.Fatalf("append other: %v", err)
	}

	records, err := log.Records(ctx, "report.md")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Sequence != i+1 {
			t.Errorf("position %d: expected sequence %d, got %d", i, i+1, r.Sequence)
		}
	}

	other, err := log.Records(ctx, "other.md")
	if err != nil {
		t.Fatalf("records other: %v", err)
	}
	if len(other) != 1 || other[0].FinalVerdict != model.VerdictLLMError {
		t.Errorf("reports should not share records, got %+v", other)
	}

	empty, err := log.Records(ctx, "missing.md")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no records for unknown report, got %d (%v)", len(empty), err)
	}

	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := log.Append(ctx, "report.md", 11, record(model.VerdictValid)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestJSONLLog(t *testing.T) {
	log, err := NewJSONLLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exerciseLog(t, log)
}

func TestJSONLLog_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, _ := NewJSONLLog(dir)
	_ = first.Append(ctx, "r.md", 2, record(model.VerdictValid))
	_ = first.Append(ctx, "r.md", 1, record(model.VerdictMisleading))
	_ = first.Close()

	data, err := os.ReadFile(first.Path("r.md"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("expected 2 lines on disk, got %d", got)
	}

	second, _ := NewJSONLLog(dir)
	defer second.Close()
	records, err := second.Records(ctx, "r.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].FinalVerdict != model.VerdictMisleading {
		t.Errorf("expected records sorted by sequence, got %+v", records)
	}
}

func TestJSONLLog_SafeNames(t *testing.T) {
	dir := t.TempDir()
	log, _ := NewJSONLLog(dir)
	defer log.Close()

	path := log.Path("../../etc/weird report.md")
	if filepath.Dir(path) != dir {
		t.Errorf("report names must stay inside the log dir, got %s", path)
	}
	if !strings.HasSuffix(path, "weird_report.md.records.jsonl") {
		t.Errorf("unexpected path %s", path)
	}
}

func TestBadgerLog(t *testing.T) {
	log, err := OpenBadgerLog(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	exerciseLog(t, log)
}

func TestBadgerLog_RejectsDuplicate(t *testing.T) {
	log, err := OpenBadgerLog(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	ctx := context.Background()
	if err := log.Append(ctx, "r.md", 1, record(model.VerdictValid)); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(ctx, "r.md", 1, record(model.VerdictMisleading)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestJSONLLog_RejectsDuplicateAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewJSONLLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Append(ctx, "r.md", 1, record(model.VerdictValid)); err != nil {
		t.Fatal(err)
	}
	if err := first.Append(ctx, "r.md", 1, record(model.VerdictValid)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate within a session, got %v", err)
	}
	_ = first.Close()

	second, err := NewJSONLLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if err := second.Append(ctx, "r.md", 1, record(model.VerdictMisleading)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate from a new session, got %v", err)
	}
	if err := second.Append(ctx, "r.md", 2, record(model.VerdictMisleading)); err != nil {
		t.Fatalf("expected a new sequence to append, got %v", err)
	}

	records, err := second.Records(ctx, "r.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Sequence != 1 || records[1].Sequence != 2 {
		t.Fatalf("expected sequences 1 and 2 once each, got %+v", records)
	}
	if records[0].FinalVerdict != model.VerdictValid {
		t.Errorf("expected the original record kept, got %s", records[0].FinalVerdict)
	}
}

func TestBadgerLog_RequiresPath(t *testing.T) {
	if _, err := OpenBadgerLog(BadgerConfig{}); err == nil {
		t.Error("expected error without a path")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(model.AuditConfig{Dir: dir, Backend: "jsonl"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := log.(*JSONLLog); !ok {
		t.Errorf("expected *JSONLLog, got %T", log)
	}
	log.Close()

	log, err = Open(model.AuditConfig{Backend: "badger", BadgerPath: filepath.Join(dir, "db")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := log.(*BadgerLog); !ok {
		t.Errorf("expected *BadgerLog, got %T", log)
	}
	log.Close()

	if _, err := Open(model.AuditConfig{Backend: "sqlite"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
