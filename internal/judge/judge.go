package judge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/jury"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/telemetry"
)

// Deliberator runs phase 3 over one piece of evidence
type Deliberator interface {
	Deliberate(ctx context.Context, ev jury.Evidence) *model.ConsensusResult
}

// Config holds the phase 1 and phase 2 parameters
type Config struct {
	ContextLines   int
	QuoteThreshold float64
}

// DefaultJudgeConfig returns the documented defaults
func DefaultJudgeConfig() Config {
	return Config{ContextLines: 5, QuoteThreshold: 0.80}
}

// Judge verifies (claim, quote, citation) triples in three ordered phases
type Judge struct {
	store  corpus.Store
	jury   Deliberator
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a judge reading documents from store. A nil jury makes
// phase 3 report LLM_ERROR.
func New(store corpus.Store, jury Deliberator, config Config, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.ContextLines < 0 {
		config.ContextLines = 0
	}
	return &Judge{
		store:  store,
		jury:   jury,
		config: config,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// VerifyClaim verifies a parsed claim
func (j *Judge) VerifyClaim(ctx context.Context, c model.Claim) *model.VerificationRecord {
	return j.Verify(ctx, c.Text, c.Quote, c.Citation.Filename, c.Citation.StartLine, c.Citation.EndLine)
}

// Verify runs the pipeline and always returns a complete record. Phase 1
// failures end the run; otherwise phases 2 and 3 both execute and a failed
// quote match overrides the jury.
func (j *Judge) Verify(ctx context.Context, claim, quote, filename string, start, end int) *model.VerificationRecord {
	record := &model.VerificationRecord{
		ID: uuid.NewString(),
		Claim: model.Claim{
			Text:  claim,
			Quote: quote,
			Citation: model.Citation{
				Filename:  filename,
				StartLine: start,
				EndLine:   end,
			},
		},
	}
	log := j.logger.With("citation", record.Claim.Citation.String())
	defer func() {
		record.VerifiedAt = j.now()
		telemetry.RecordVerification(string(record.FinalVerdict))
		log.Info("verification complete", "verdict", record.FinalVerdict, "verified", record.Verified)
	}()

	// Phase 1
	phaseStart := time.Now()
	existence, lines := j.checkExistence(ctx, filename, start, end)
	telemetry.RecordPhase("existence", time.Since(phaseStart))
	record.Existence = existence
	if !existence.Passed {
		record.FinalVerdict = existence.Verdict
		log.Warn("citation rejected", "verdict", existence.Verdict, "error", existence.Error)
		return record
	}
	record.CitedText = existence.CitedText

	// Phase 2
	phaseStart = time.Now()
	source := existence.ContextBefore
	if source != "" {
		source += "\n"
	}
	source += model.JoinText(lines)
	quoteResult := MatchQuote(source, quote, j.config.QuoteThreshold)
	telemetry.RecordPhase("quote", time.Since(phaseStart))
	record.Quote = &quoteResult
	log.Debug("quote matched", "score", quoteResult.Score, "method", quoteResult.Method, "match", quoteResult.Match)

	// Phase 3 runs even when phase 2 failed; its result is kept for audit
	phaseStart = time.Now()
	record.Consensus = j.deliberate(ctx, jury.Evidence{
		Filename:      filename,
		StartLine:     start,
		EndLine:       end,
		ContextBefore: existence.ContextBefore,
		CitedText:     existence.CitedText,
		ContextAfter:  existence.ContextAfter,
		Claim:         claim,
		Quote:         quote,
	})
	telemetry.RecordPhase("jury", time.Since(phaseStart))

	if !quoteResult.Match {
		record.FinalVerdict = model.VerdictQuoteNotFound
	} else {
		record.FinalVerdict = record.Consensus.Verdict
	}
	record.Verified = record.FinalVerdict == model.VerdictValid
	return record
}

// CheckExistence runs phase 1 alone
func (j *Judge) CheckExistence(ctx context.Context, filename string, start, end int) model.ExistenceResult {
	result, _ := j.checkExistence(ctx, filename, start, end)
	return result
}

func (j *Judge) checkExistence(ctx context.Context, filename string, start, end int) (model.ExistenceResult, []model.Line) {
	doc, err := j.store.Get(ctx, filename)
	if err != nil {
		// Unreadable, malformed and escaping paths are all unusable citations
		return model.ExistenceResult{Verdict: model.VerdictFileNotFound, Error: err.Error()}, nil
	}

	lines, err := corpus.Lines(doc, start, end)
	if err != nil {
		verdict := model.VerdictLineOutOfRange
		if !errors.Is(err, corpus.ErrLineOutOfRange) {
			verdict = model.VerdictFileNotFound
		}
		return model.ExistenceResult{Verdict: verdict, Error: err.Error(), MaxLine: doc.MaxLine()}, nil
	}

	n := j.config.ContextLines
	return model.ExistenceResult{
		Passed:        true,
		MaxLine:       doc.MaxLine(),
		CitedText:     model.JoinTagged(lines),
		ContextBefore: model.JoinText(doc.Slice(start-n, start-1)),
		ContextAfter:  model.JoinText(doc.Slice(end+1, end+n)),
	}, lines
}

func (j *Judge) deliberate(ctx context.Context, ev jury.Evidence) *model.ConsensusResult {
	if j.jury == nil {
		return &model.ConsensusResult{
			Verdict:   model.VerdictLLMError,
			Tally:     map[model.Verdict]int{},
			Rationale: "no jury configured",
		}
	}
	return j.jury.Deliberate(ctx, ev)
}
