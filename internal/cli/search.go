package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/search"
)

var (
	searchMode string
	searchTopK int
	searchJSON bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the canonical corpus",
	Long: `Search ranks corpus passages for a query.

Modes:
  exhaustive  every line containing a query term, in document order
  bm25        keyword ranking
  vector      semantic similarity
  hybrid      semantic discovery, then keyword pinpointing (default)

Example:
  tbv search "budget increase"
  tbv search "road repair" --mode bm25 --top-k 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <file> <start> <end>",
	Short: "Print a line range of a canonical document",
	Args:  cobra.ExactArgs(3),
	RunE:  runRead,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(readCmd)

	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "retrieval mode (exhaustive, bm25, vector, hybrid)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the response as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode, err := search.ParseMode(searchMode)
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := context.Background()

	engine, err := buildEngine(ctx, cfg, newStore(cfg, logger), logger)
	if err != nil {
		return err
	}
	resp, err := engine.Search(ctx, strings.Join(args, " "), mode, searchTopK)
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Degraded {
		fmt.Fprintf(os.Stderr, "⚠ %s\n\n", resp.Notice)
	}
	if len(resp.Results) == 0 {
		fmt.Println("No results")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Printf("%d. %s (score %.3f, %s)\n", i+1, model.Citation{Filename: r.Document, StartLine: r.StartLine, EndLine: r.EndLine}, r.Score, r.MatchType)
		if r.Text != "" {
			fmt.Printf("   %s\n", preview(r.Text, 200))
		}
	}
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid start line %q", args[1])
	}
	end, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid end line %q", args[2])
	}

	store := newStore(cfg, newLogger())
	doc, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	lines, err := corpus.Lines(doc, start, end)
	if err != nil {
		return err
	}
	fmt.Println(model.JoinTagged(lines))
	return nil
}

func preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > max {
		return string(r[:max]) + "…"
	}
	return text
}
