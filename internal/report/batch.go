package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/trustbutverify/internal/audit"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/telemetry"
	"github.com/ppiankov/trustbutverify/internal/worker"
)

// ErrAlreadyAudited is returned when the audit log already holds records for
// a report. The log is append-only, so a second run would duplicate them.
var ErrAlreadyAudited = errors.New("report already has audit records")

// Options configures a batch run
type Options struct {
	Workers       int
	ContextWindow int
	CorpusRoot    string // Link targets in citations resolve against this
	Session       string
}

// Orchestrator verifies every citation of a report
type Orchestrator struct {
	verifier worker.Verifier
	log      audit.Log
	options  Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil log skips persistence.
func NewOrchestrator(verifier worker.Verifier, log audit.Log, options Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if options.Workers <= 0 {
		options.Workers = 1
	}
	return &Orchestrator{
		verifier: verifier,
		log:      log,
		options:  options,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunFile loads the report at path and verifies it
func (o *Orchestrator) RunFile(ctx context.Context, path string) (*model.BatchSummary, error) {
	text, err := Load(path)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, filepath.Base(path), text)
}

// Run verifies the citations in text. Malformed citations are recorded and
// skipped. On cancellation the partial summary is returned together with
// ctx's error; records already appended stay in the log.
func (o *Orchestrator) Run(ctx context.Context, name, text string) (*model.BatchSummary, error) {
	if o.log != nil {
		existing, err := o.log.Records(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read audit log: %w", err)
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%w: %s has %d", ErrAlreadyAudited, name, len(existing))
		}
	}

	summary := &model.BatchSummary{
		Report:      name,
		Session:     o.options.Session,
		StartedAt:   o.now(),
		ParseErrors: []model.ParseError{},
		Records:     []model.VerificationRecord{},
	}

	window := o.options.ContextWindow
	if window == 0 {
		window = DefaultContextWindow
	}
	extraction := Extract(text, o.options.CorpusRoot, window)
	summary.ParseErrors = append(summary.ParseErrors, extraction.Errors...)
	summary.Total = len(extraction.Items) + len(extraction.Errors)
	for _, pe := range extraction.Errors {
		telemetry.RecordCitation("parse_error")
		o.logger.Warn("citation skipped", "report", name, "sequence", pe.Sequence, "raw", pe.Raw, "error", pe.Error)
	}

	items := make([]worker.Item, len(extraction.Items))
	for i, it := range extraction.Items {
		items[i] = worker.Item{Sequence: it.Sequence, Claim: it.Claim}
	}

	var (
		mu         sync.Mutex
		appendErrs []error
	)
	processor := worker.NewBatchProcessor(o.verifier, o.options.Workers)
	if o.log != nil {
		processor.OnRecord(func(ctx context.Context, r *worker.VerifyResult) {
			if err := o.log.Append(ctx, name, r.Sequence, r.Record); err != nil {
				o.logger.Error("append record", "report", name, "sequence", r.Sequence, "error", err)
				mu.Lock()
				appendErrs = append(appendErrs, fmt.Errorf("record %d: %w", r.Sequence, err))
				mu.Unlock()
			}
		})
	}

	o.logger.Info("verifying report", "report", name, "citations", len(items), "parse_errors", len(extraction.Errors))
	for _, r := range processor.Process(ctx, items) {
		if r.Error != nil || r.Record == nil {
			continue
		}
		summary.Records = append(summary.Records, *r.Record)
		outcome := "unverified"
		if r.Record.Verified {
			outcome = "verified"
		}
		telemetry.RecordCitation(outcome)
	}

	summary.FinishedAt = o.now()
	summary.Tally()
	if err := ctx.Err(); err != nil {
		summary.Cancelled = true
		o.logger.Warn("report verification cancelled", "report", name, "completed", len(summary.Records), "total", len(items))
		return summary, err
	}
	o.logger.Info("report verified",
		"report", name,
		"verified", summary.Verified,
		"records", len(summary.Records),
		"rate", summary.VerificationRate,
	)
	return summary, errors.Join(appendErrs...)
}

// ArtifactPaths returns the json and markdown artifact paths for a report
func ArtifactPaths(dir, report string) (string, string) {
	stem := stemOf(report)
	return filepath.Join(dir, stem+".verification.json"), filepath.Join(dir, stem+".verification.md")
}
