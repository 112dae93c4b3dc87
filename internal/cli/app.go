package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/trustbutverify/internal/audit"
	"github.com/ppiankov/trustbutverify/internal/cache"
	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/index"
	"github.com/ppiankov/trustbutverify/internal/judge"
	"github.com/ppiankov/trustbutverify/internal/jury"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/search"
	"github.com/ppiankov/trustbutverify/internal/telemetry"
)

// newStore opens the canonical corpus
func newStore(cfg *model.Config, logger *slog.Logger) *corpus.DirStore {
	return corpus.NewDirStore(cfg.Corpus.Root, cfg.Corpus.Pattern, cfg.Corpus.CacheTTL, logger)
}

// newEmbedder returns nil for "none"; a missing API key also yields nil so
// the index builds keyword-only instead of failing
func newEmbedder(cfg *model.Config, logger *slog.Logger) index.Embedder {
	switch cfg.Index.Embedder {
	case "tfidf":
		return index.NewTFIDFEmbedder()
	case "openai":
		key := os.Getenv(cfg.Index.EmbeddingAPIKeyEnv)
		e, err := index.NewOpenAIEmbedder(index.OpenAIConfig{
			APIKey:     key,
			BaseURL:    cfg.Index.EmbeddingBaseURL,
			Model:      cfg.Index.EmbeddingModel,
			Cache:      cache.NewLayeredCache(time.Hour, cfg.Index.EmbeddingCacheDir, 30*24*time.Hour),
			MaxRetries: 3,
		})
		if err != nil {
			logger.Warn("embedder unavailable, search will be keyword-only", "embedder", "openai", "error", err)
			return nil
		}
		return e
	default:
		return nil
	}
}

// buildEngine builds a fresh index generation over the corpus
func buildEngine(ctx context.Context, cfg *model.Config, store corpus.Store, logger *slog.Logger) (*search.Engine, error) {
	embedder := newEmbedder(cfg, logger)
	idx, err := index.BuildFromStore(ctx, store, index.BuildOptions{
		ChunkSize: cfg.Index.ChunkSize,
		Overlap:   cfg.Index.ChunkOverlap,
		Embedder:  embedder,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	telemetry.SetIndexChunks(idx.Stats().Chunks)

	return search.NewEngine(idx, embedder, logger,
		search.WithBM25(cfg.Index.BM25K1, cfg.Index.BM25B),
		search.WithCandidates(cfg.Index.HybridCandidates),
	), nil
}

// newJudge wires the jury panel, with transcripts, into a judge
func newJudge(cfg *model.Config, store corpus.Store, transcript jury.Transcript, logger *slog.Logger) (*judge.Judge, error) {
	if err := cfg.ValidateJury(); err != nil {
		return nil, err
	}
	opts := []jury.Option{jury.WithLogger(logger)}
	if transcript != nil {
		opts = append(opts, jury.WithTranscript(transcript))
	}
	panel, err := jury.NewPanelFromConfig(cfg.Jury, cfg.Judge.PhaseTimeout, opts...)
	if err != nil {
		return nil, fmt.Errorf("create jury: %w", err)
	}
	return judge.New(store, panel, judge.Config{
		ContextLines:   cfg.Judge.ContextLines,
		QuoteThreshold: cfg.Judge.QuoteThreshold,
	}, logger), nil
}

// newTranscripts opens the prompt/response store for one session
func newTranscripts(cfg *model.Config, session string) (*audit.TranscriptStore, error) {
	return audit.NewTranscriptStore(filepath.Join(cfg.Audit.Dir, "transcripts"), session)
}
