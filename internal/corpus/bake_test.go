package corpus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBake_RoundTrip(t *testing.T) {
	original := "Budget meeting minutes\n\n  indented line\nfinal line without newline"

	var baked bytes.Buffer
	n, err := Bake(strings.NewReader(original), &baked)
	if err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 lines, got %d", n)
	}

	if !strings.HasPrefix(baked.String(), "[L0001] Budget meeting minutes\n[L0002] \n[L0003]   indented line\n") {
		t.Errorf("unexpected baked output:\n%s", baked.String())
	}

	doc, err := Parse("minutes_baked.txt", &baked)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := strings.Split(original, "\n")
	if len(doc.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(doc.Lines))
	}
	for i, line := range doc.Lines {
		if line.Number != i+1 {
			t.Errorf("line %d numbered %d", i+1, line.Number)
		}
		if line.Text != want[i] {
			t.Errorf("line %d: expected %q, got %q", i+1, want[i], line.Text)
		}
	}
}

func TestBake_WideLineNumbers(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 10001; i++ {
		src.WriteString("x\n")
	}

	var baked bytes.Buffer
	if _, err := Bake(strings.NewReader(src.String()), &baked); err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if !strings.Contains(baked.String(), "[L10001] x\n") {
		t.Error("expected five-digit tag for line 10001")
	}

	doc, err := Parse("big_baked.txt", &baked)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.MaxLine() != 10001 {
		t.Errorf("expected max line 10001, got %d", doc.MaxLine())
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing tag", "[L0001] ok\nno tag here\n"},
		{"renumbered", "[L0001] one\n[L0003] three\n"},
		{"starts at two", "[L0002] two\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad_baked.txt", strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestBakeFile(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "council")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(srcDir, "minutes.txt")
	var body strings.Builder
	for i := 0; i < 25; i++ {
		body.WriteString("line\n")
	}
	if err := os.WriteFile(src, []byte(body.String()), 0644); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	res, err := BakeFile(src, outDir)
	if err != nil {
		t.Fatalf("BakeFile failed: %v", err)
	}

	if !strings.HasPrefix(res.Filename, "council_minutes_") || !strings.HasSuffix(res.Filename, BakedSuffix) {
		t.Errorf("unexpected baked filename %q", res.Filename)
	}
	if res.LineCount != 25 {
		t.Errorf("expected 25 lines, got %d", res.LineCount)
	}
	if len(res.BlockHashes) != 3 {
		t.Errorf("expected 3 block hashes, got %d", len(res.BlockHashes))
	}

	info, err := os.Stat(filepath.Join(outDir, res.Filename))
	if err != nil {
		t.Fatalf("stat baked file: %v", err)
	}
	if info.Mode().Perm() != 0444 {
		t.Errorf("expected read-only file, got %v", info.Mode().Perm())
	}

	again, err := BakeFile(src, outDir)
	if err != nil {
		t.Fatalf("second BakeFile failed: %v", err)
	}
	if !again.Skipped || again.Filename != res.Filename {
		t.Errorf("expected skip of already baked source, got %+v", again)
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags("[L0001] budget rose\n[L0002] by 15 percent")
	if got != "budget rose\nby 15 percent" {
		t.Errorf("unexpected stripped text %q", got)
	}
}
