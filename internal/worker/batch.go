package worker

import (
	"context"
	"sort"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// Verifier verifies a single claim and always returns a complete record
type Verifier interface {
	VerifyClaim(ctx context.Context, claim model.Claim) *model.VerificationRecord
}

// RecordHook is called from the worker as soon as a record completes
type RecordHook func(ctx context.Context, result *VerifyResult)

// VerifyJob represents one citation of a report
type VerifyJob struct {
	Sequence int
	Claim    model.Claim
	Verifier Verifier
	OnRecord RecordHook
}

// Execute executes the verification job
func (j *VerifyJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &VerifyResult{Sequence: j.Sequence, Error: err}
	}
	record := j.Verifier.VerifyClaim(ctx, j.Claim)
	record.Sequence = j.Sequence
	result := &VerifyResult{Sequence: j.Sequence, Record: record, Error: ctx.Err()}
	if j.OnRecord != nil && result.Error == nil {
		j.OnRecord(ctx, result)
	}
	return result
}

// VerifyResult represents the result of a verification job. Error is set
// when the run was cancelled; Record may still hold a completed result.
type VerifyResult struct {
	Sequence int
	Record   *model.VerificationRecord
	Error    error
}

// GetError returns the error from the verification result
func (r *VerifyResult) GetError() error {
	return r.Error
}

// Item is a claim with the sequence number it is reported under
type Item struct {
	Sequence int
	Claim    model.Claim
}

// BatchProcessor verifies many claims concurrently
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
	onRecord    RecordHook
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// OnRecord installs a hook run for every record completed before cancellation
func (b *BatchProcessor) OnRecord(hook RecordHook) *BatchProcessor {
	b.onRecord = hook
	return b
}

// ProcessClaims verifies claims concurrently. Claim i gets sequence
// number i+1.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []model.Claim) []*VerifyResult {
	items := make([]Item, len(claims))
	for i, claim := range claims {
		items[i] = Item{Sequence: i + 1, Claim: claim}
	}
	return b.Process(ctx, items)
}

// Process verifies items concurrently. Results come back in sequence order;
// items never started because ctx was cancelled are absent.
func (b *BatchProcessor) Process(ctx context.Context, items []Item) []*VerifyResult {
	if len(items) == 0 {
		return []*VerifyResult{}
	}

	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &VerifyJob{
			Sequence: item.Sequence,
			Claim:    item.Claim,
			Verifier: b.verifier,
			OnRecord: b.onRecord,
		}
	}

	results := Run(ctx, b.concurrency, jobs)

	verifyResults := make([]*VerifyResult, 0, len(results))
	for _, result := range results {
		verifyResults = append(verifyResults, result.(*VerifyResult))
	}
	sort.Slice(verifyResults, func(i, j int) bool {
		return verifyResults[i].Sequence < verifyResults[j].Sequence
	})

	return verifyResults
}
