package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/ppiankov/trustbutverify/internal/corpus"
)

var (
	bakeOut     string
	bakePattern string
)

// bakeCmd represents the bake command
var bakeCmd = &cobra.Command{
	Use:   "bake <file-or-dir>...",
	Short: "Bake plain-text sources into line-tagged canonical documents",
	Long: `Bake prefixes every line of each source with a fixed [Lnnnn] tag and writes a
read-only canonical copy into the corpus. Tags are assigned once; a source
that already has a baked copy is skipped.

Example:
  tbv bake minutes/2024-03.txt
  tbv bake ./sources --pattern "**/*.txt" --out data/canonical`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBake,
}

func init() {
	rootCmd.AddCommand(bakeCmd)
	bakeCmd.Flags().StringVar(&bakeOut, "out", "", "output directory (default: corpus.root)")
	bakeCmd.Flags().StringVar(&bakePattern, "pattern", "**/*.txt", "glob for sources inside directory arguments")
}

func runBake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := bakeOut
	if out == "" {
		out = cfg.Corpus.Root
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	var sources []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			sources = append(sources, arg)
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(arg), bakePattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("glob %s: %w", arg, err)
		}
		for _, m := range matches {
			sources = append(sources, filepath.Join(arg, filepath.FromSlash(m)))
		}
	}

	baked, skipped := 0, 0
	for _, src := range sources {
		res, err := corpus.BakeFile(src, out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", src, err)
			continue
		}
		if res.Skipped {
			skipped++
			if verbose {
				fmt.Fprintf(os.Stderr, "- %s already baked as %s\n", src, res.Filename)
			}
			continue
		}
		baked++
		fmt.Fprintf(os.Stderr, "✓ %s → %s (%d lines)\n", src, res.Filename, res.LineCount)
	}

	fmt.Fprintf(os.Stderr, "\nBaked %d, skipped %d, failed %d\n", baked, skipped, len(sources)-baked-skipped)
	return nil
}
