package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// ErrArtifactExists is returned instead of overwriting a verification artifact
var ErrArtifactExists = errors.New("verification artifact already exists")

// CheckArtifacts fails with ErrArtifactExists when report already has a
// JSON artifact in dir, so a run can be refused before any juror is asked
func CheckArtifacts(dir, report string) error {
	jsonPath, _ := ArtifactPaths(dir, report)
	_, err := os.Stat(jsonPath)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrArtifactExists, jsonPath)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("check artifact: %w", err)
	}
	return nil
}

// WriteArtifacts writes the read-only JSON artifact and its markdown summary
// into dir. An existing JSON artifact is never replaced.
func WriteArtifacts(summary *model.BatchSummary, dir string) (string, string, error) {
	jsonPath, mdPath := ArtifactPaths(dir, summary.Report)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal summary: %w", err)
	}

	f, err := os.OpenFile(jsonPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0444)
	if errors.Is(err, fs.ErrExist) {
		return "", "", fmt.Errorf("%w: %s", ErrArtifactExists, jsonPath)
	}
	if err != nil {
		return "", "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close artifact: %w", err)
	}

	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(summary)), 0644); err != nil {
		return jsonPath, "", fmt.Errorf("write summary: %w", err)
	}
	return jsonPath, mdPath, nil
}

// RenderMarkdown renders the count summary and one row per citation
func RenderMarkdown(s *model.BatchSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Verification: %s\n\n", s.Report)
	if s.Session != "" {
		fmt.Fprintf(&b, "Session `%s`, ", s.Session)
	}
	fmt.Fprintf(&b, "finished %s\n\n", s.FinishedAt.Format("2006-01-02 15:04:05 UTC"))
	if s.Cancelled {
		b.WriteString("**Run was cancelled; results are partial.**\n\n")
	}

	fmt.Fprintf(&b, "- Citations: %d\n", s.Total)
	fmt.Fprintf(&b, "- Verified: %d of %d (%.1f%%)\n", s.Verified, len(s.Records), s.VerificationRate*100)
	fmt.Fprintf(&b, "- Parse errors: %d\n\n", len(s.ParseErrors))

	b.WriteString("| Verdict | Count |\n|---|---|\n")
	verdicts := append(append([]model.Verdict{}, model.AllVerdicts...), model.VerdictCitationInvalid)
	for _, v := range verdicts {
		if n := s.Counts[v]; n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", v, n)
		}
	}

	if len(s.Records) > 0 {
		b.WriteString("\n## Citations\n\n| # | Citation | Verdict | Quote score |\n|---|---|---|---|\n")
		for _, r := range s.Records {
			score := "-"
			if r.Quote != nil {
				score = fmt.Sprintf("%.2f", r.Quote.Score)
			}
			fmt.Fprintf(&b, "| %d | `%s` | %s | %s |\n", r.Sequence, r.Claim.Citation.String(), r.FinalVerdict, score)
		}
	}

	if len(s.ParseErrors) > 0 {
		b.WriteString("\n## Parse errors\n\n")
		for _, pe := range s.ParseErrors {
			fmt.Fprintf(&b, "- #%d `%s`: %s\n", pe.Sequence, pe.Raw, pe.Error)
		}
	}
	return b.String()
}

// stemOf is the report name without directory or extension
func stemOf(report string) string {
	return strings.TrimSuffix(filepath.Base(report), filepath.Ext(report))
}
