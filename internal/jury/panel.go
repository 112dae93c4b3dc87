package jury

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/telemetry"
	"github.com/ppiankov/trustbutverify/internal/worker"
)

// ErrNoJurors is returned when a panel is constructed without jurors
var ErrNoJurors = errors.New("jury panel needs at least one juror")

// Transcript persists prompts and raw responses verbatim for replay
type Transcript interface {
	RecordPrompt(prompt string) (int, error)
	RecordResponse(index int, juror, raw string) error
}

// Member is a juror plus its call policy
type Member struct {
	Juror      Juror
	Timeout    time.Duration // Bounds the juror's whole deliberation, retries included
	MaxRetries int
}

// Panel dispatches one prompt to every member concurrently and votes
type Panel struct {
	members      []Member
	limiter      *worker.Limiter
	phaseTimeout time.Duration
	backoff      time.Duration
	transcript   Transcript
	logger       *slog.Logger
}

// Option configures a Panel
type Option func(*Panel)

// WithPhaseTimeout bounds the wait for the whole panel
func WithPhaseTimeout(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.phaseTimeout = d
		}
	}
}

// WithTranscript records every prompt and response
func WithTranscript(t Transcript) Option {
	return func(p *Panel) { p.transcript = t }
}

// WithLimiter rate-limits calls per juror name
func WithLimiter(l *worker.Limiter) Option {
	return func(p *Panel) { p.limiter = l }
}

// WithBackoff sets the first retry delay; later retries double it
func WithBackoff(d time.Duration) Option {
	return func(p *Panel) { p.backoff = d }
}

// WithLogger sets the panel logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Panel) { p.logger = l }
}

// NewPanel creates a panel. Member names must be unique.
func NewPanel(members []Member, opts ...Option) (*Panel, error) {
	if len(members) == 0 {
		return nil, ErrNoJurors
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.Juror.Name()] {
			return nil, fmt.Errorf("duplicate juror %q", m.Juror.Name())
		}
		seen[m.Juror.Name()] = true
	}

	p := &Panel{
		members:      members,
		limiter:      worker.NewLimiter(0, 1),
		phaseTimeout: 3 * time.Minute,
		backoff:      time.Second,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Size returns the number of jurors on the panel
func (p *Panel) Size() int {
	return len(p.members)
}

// Deliberate runs phase 3. Every juror either answers or fails before the
// vote; there is no early exit. The result is always complete.
func (p *Panel) Deliberate(ctx context.Context, ev Evidence) *model.ConsensusResult {
	prompt := BuildPrompt(ev)

	index := 0
	if p.transcript != nil {
		i, err := p.transcript.RecordPrompt(prompt)
		if err != nil {
			p.logger.Error("record prompt", "error", err)
		}
		index = i
	}

	phaseCtx, cancel := context.WithTimeout(ctx, p.phaseTimeout)
	defer cancel()

	responses := make([]model.JurorResponse, len(p.members))
	g, gctx := errgroup.WithContext(phaseCtx)
	for i, m := range p.members {
		g.Go(func() error {
			responses[i] = p.ask(gctx, m, prompt, index)
			return nil
		})
	}
	_ = g.Wait()

	result := Vote(responses)
	result.PromptIndex = index
	p.logger.Info("jury verdict",
		"verdict", result.Verdict,
		"responding", result.Responding,
		"panel", result.Panel,
		"prompt_index", index)
	return &result
}

// ask runs one juror to completion: rate limit, call, retry transient
// failures, then validate the answer
func (p *Panel) ask(ctx context.Context, m Member, prompt string, index int) model.JurorResponse {
	name := m.Juror.Name()
	start := time.Now()

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	var (
		raw      string
		err      error
		attempts int
	)
	for attempt := 0; attempt <= m.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			if err == nil {
				err = ctx.Err()
			}
			break
		}
		if err = p.limiter.Wait(ctx, name); err != nil {
			break
		}

		attempts++
		raw, err = m.Juror.Deliberate(ctx, prompt)
		p.record(index, name, raw, err)
		if err == nil || !IsRetryable(err) {
			break
		}
		p.logger.Warn("juror call failed, retrying", "juror", name, "attempt", attempts, "error", err)
	}

	latency := time.Since(start)
	telemetry.RecordJurorCall(name, err, latency)

	var resp model.JurorResponse
	if err != nil {
		resp = model.JurorResponse{Juror: name, Error: err.Error()}
	} else {
		resp = ParseResponse(name, raw)
	}
	resp.Attempts = attempts
	resp.Latency = latency
	if resp.Error != "" {
		p.logger.Warn("juror excluded from vote", "juror", name, "error", resp.Error)
	}
	return resp
}

func (p *Panel) record(index int, juror, raw string, err error) {
	if p.transcript == nil {
		return
	}
	if err != nil {
		raw = "ERROR: " + err.Error()
	}
	if rerr := p.transcript.RecordResponse(index, juror, raw); rerr != nil {
		p.logger.Error("record response", "juror", juror, "error", rerr)
	}
}
