package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/trustbutverify/internal/audit"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/report"
)

var (
	verifyClaim string
	verifyQuote string
	verifyFile  string
	verifyStart int
	verifyEnd   int

	auditOutputDir string
	auditWorkers   int
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify one claim against a cited line range",
	Long: `Verify runs a single claim through the three verification phases and prints
the full record as JSON. The exit status is non-zero unless the claim is VALID.

Example:
  tbv verify --claim "The budget rose 15%" --quote "budget increased by 15 percent" \
    --file minutes_baked.txt --start 12 --end 12`,
	RunE: runVerify,
}

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <report>",
	Short: "Verify every citation in a report",
	Long: `Audit parses a markdown, text or HTML report for citations of the forms
[file:Lstart-Lend](path#Lstart) and [file:Ln], rebuilds the claim each one
supports, and verifies them concurrently.

Results are appended to the audit log as they complete. A read-only
<report>.verification.json artifact and a markdown summary are written
at the end; an existing artifact is never overwritten.

Example:
  tbv audit reports/budget.md
  tbv audit reports/budget.html --workers 8 --output-dir ./verification`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(auditCmd)

	verifyCmd.Flags().StringVar(&verifyClaim, "claim", "", "the assertion being verified")
	verifyCmd.Flags().StringVar(&verifyQuote, "quote", "", "the literal text the claim relies on")
	verifyCmd.Flags().StringVar(&verifyFile, "file", "", "canonical document filename")
	verifyCmd.Flags().IntVar(&verifyStart, "start", 0, "first cited line")
	verifyCmd.Flags().IntVar(&verifyEnd, "end", 0, "last cited line (default: start)")
	_ = verifyCmd.MarkFlagRequired("claim")
	_ = verifyCmd.MarkFlagRequired("quote")
	_ = verifyCmd.MarkFlagRequired("file")
	_ = verifyCmd.MarkFlagRequired("start")

	auditCmd.Flags().StringVar(&auditOutputDir, "output-dir", "", "artifact directory (default: batch.output_dir)")
	auditCmd.Flags().IntVar(&auditWorkers, "workers", 0, "concurrent verifications (default: batch.workers)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcripts, err := newTranscripts(cfg, "")
	if err != nil {
		return err
	}
	j, err := newJudge(cfg, newStore(cfg, logger), transcripts, logger)
	if err != nil {
		return err
	}

	end := verifyEnd
	if end == 0 {
		end = verifyStart
	}
	record := j.Verify(ctx, verifyClaim, verifyQuote, verifyFile, verifyStart, end)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return err
	}
	if !record.Verified {
		return fmt.Errorf("claim not verified: %s", record.FinalVerdict)
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if auditOutputDir != "" {
		cfg.Batch.OutputDir = auditOutputDir
	}
	if auditWorkers > 0 {
		cfg.Batch.Workers = auditWorkers
	}
	if err := report.CheckArtifacts(cfg.Batch.OutputDir, path); err != nil {
		return fmt.Errorf("%w\nRemove it first to audit %s again", err, path)
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Batch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Batch.Timeout)
		defer cancel()
	}

	session := uuid.NewString()
	transcripts, err := newTranscripts(cfg, session)
	if err != nil {
		return err
	}
	j, err := newJudge(cfg, newStore(cfg, logger), transcripts, logger)
	if err != nil {
		return err
	}
	records, err := audit.Open(cfg.Audit, logger)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = records.Close() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  tbv Report Audit\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Report:       %s\n", path)
	fmt.Fprintf(os.Stderr, "  Session:      %s\n", session)
	fmt.Fprintf(os.Stderr, "  Jurors:       %d\n", len(cfg.Jury.Jurors))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Batch.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Batch.OutputDir)
	fmt.Fprintf(os.Stderr, "\n")

	orchestrator := report.NewOrchestrator(j, records, report.Options{
		Workers:       cfg.Batch.Workers,
		ContextWindow: cfg.Batch.ContextWindow,
		CorpusRoot:    cfg.Corpus.Root,
		Session:       session,
	}, logger)

	summary, runErr := orchestrator.RunFile(ctx, path)
	if summary == nil {
		return runErr
	}

	jsonPath, mdPath, err := report.WriteArtifacts(summary, cfg.Batch.OutputDir)
	if err != nil {
		return err
	}

	printSummary(summary)
	fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
	fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
	fmt.Fprintf(os.Stderr, "✓ Transcripts: %s\n", transcripts.Dir())
	return runErr
}

func printSummary(s *model.BatchSummary) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Audit Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Citations:    %d\n", s.Total)
	fmt.Fprintf(os.Stderr, "  Verified:     %d (%.1f%%)\n", s.Verified, s.VerificationRate*100)
	for _, v := range model.AllVerdicts {
		if n := s.Counts[v]; n > 0 {
			fmt.Fprintf(os.Stderr, "  %-18s %d\n", string(v)+":", n)
		}
	}
	if n := len(s.ParseErrors); n > 0 {
		fmt.Fprintf(os.Stderr, "  %-18s %d\n", "PARSE ERRORS:", n)
	}
	if s.Cancelled {
		fmt.Fprintf(os.Stderr, "\n  ⚠ Run cancelled; results are partial\n")
	}
	fmt.Fprintf(os.Stderr, "\n")
}
