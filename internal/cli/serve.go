package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/trustbutverify/internal/audit"
	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/mcpserver"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/search"
	"github.com/ppiankov/trustbutverify/internal/telemetry"
)

var (
	serveWatch       bool
	serveMetricsAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and verification tools over MCP (stdio)",
	Long: `Serve exposes the corpus to an agent as MCP tools on stdin/stdout:
search, search_hybrid, read_lines, verify_claim and log_finding.

With --watch the index is rebuilt whenever a canonical file changes; queries
keep using the previous index until the new one is complete.

Example:
  tbv serve --watch
  tbv serve --metrics-addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "rebuild the index when the corpus changes")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus listen address (default: telemetry.metrics_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveMetricsAddr != "" {
		cfg.Telemetry.MetricsAddr = serveMetricsAddr
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore(cfg, logger)
	engine, err := buildEngine(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	holder := search.NewHolder(engine)

	session := uuid.NewString()
	transcripts, err := newTranscripts(cfg, session)
	if err != nil {
		return err
	}
	j, err := newJudge(cfg, store, transcripts, logger)
	if err != nil {
		return err
	}
	records, err := audit.Open(cfg.Audit, logger)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = records.Close() }()
	findings, err := audit.NewFindingLog(cfg.Audit.Dir)
	if err != nil {
		return fmt.Errorf("open findings log: %w", err)
	}

	handlers := mcpserver.NewHandlers(mcpserver.Config{
		Searcher: holder,
		Store:    store,
		Verifier: j,
		Records:  records,
		Findings: findings,
		Logger:   logger,
		Session:  session,
	})
	s := mcpserver.New(handlers, Version)

	g, gctx := errgroup.WithContext(ctx)
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		g.Go(func() error { return telemetry.Serve(gctx, addr, logger) })
	}
	if serveWatch {
		watcher, err := corpus.NewWatcher(corpus.WatcherConfig{
			Root:     cfg.Corpus.Root,
			Pattern:  cfg.Corpus.Pattern,
			OnChange: func(ctx context.Context, changed []string) { rebuild(ctx, cfg, holder, store, changed, logger) },
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create corpus watcher: %w", err)
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	logger.Info("MCP server starting on stdio", "version", Version, "session", session, "watch", serveWatch)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ServeStdio(s)
	}()

	select {
	case <-gctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		stop()
		if err != nil {
			_ = g.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	}
	return g.Wait()
}

// rebuild indexes a fresh generation and publishes it; a failed build
// leaves the previous generation serving
func rebuild(ctx context.Context, cfg *model.Config, holder *search.Holder, store *corpus.DirStore, changed []string, logger *slog.Logger) {
	store.Flush()
	engine, err := buildEngine(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("index rebuild failed, keeping previous index", "error", err)
		return
	}
	holder.Swap(engine)
	logger.Info("index rebuilt", "changed", len(changed), "chunks", engine.Index().Stats().Chunks)
}
