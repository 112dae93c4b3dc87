package corpus

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ppiankov/trustbutverify/internal/model"
)

// BakedSuffix marks canonical files produced by BakeFile
const BakedSuffix = "_baked.txt"

// blockSize is the number of baked lines covered by each block hash
const blockSize = 10

// BakeResult describes one baked file
type BakeResult struct {
	Source      string   `json:"source_path"`
	Filename    string   `json:"baked_filename"`
	LineCount   int      `json:"line_count"`
	BlockHashes []string `json:"block_hashes"`
	Skipped     bool     `json:"skipped,omitempty"` // A baked file for this source already existed
}

// Bake copies r to w prefixing every line with its 1-based [Lnnnn] tag.
// Line content, including line endings, is preserved byte for byte.
func Bake(r io.Reader, w io.Writer) (int, error) {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	n := 0
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			n++
			if _, werr := bw.WriteString(model.Tag(n) + " " + line); werr != nil {
				return n, fmt.Errorf("write line %d: %w", n, werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read line %d: %w", n+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}

// BakeFile bakes one plain-text source into dir and makes the result read-only.
// The output name carries the parent directory and a short content hash,
// e.g. "minutes_2024_budget_3fa2c1_baked.txt".
func BakeFile(src, dir string) (*BakeResult, error) {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))

	// Originals are baked once; an existing output for the stem wins.
	existing, err := doublestar.Glob(os.DirFS(dir), "*"+escapeGlob(stem)+"*"+BakedSuffix)
	if err == nil && len(existing) > 0 {
		return &BakeResult{Source: src, Filename: existing[0], Skipped: true}, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	n, err := Bake(f, &buf)
	if err != nil {
		return nil, fmt.Errorf("bake %s: %w", src, err)
	}

	name := bakedName(src, buf.Bytes())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create canonical dir: %w", err)
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, buf.Bytes(), 0444); err != nil {
		return nil, fmt.Errorf("write baked file: %w", err)
	}
	// WriteFile only applies the mode on creation
	if err := os.Chmod(out, 0444); err != nil {
		return nil, fmt.Errorf("make read-only: %w", err)
	}

	return &BakeResult{
		Source:      src,
		Filename:    name,
		LineCount:   n,
		BlockHashes: blockHashes(buf.Bytes()),
	}, nil
}

// bakedName builds parentdir_stem_hash6_baked.txt
func bakedName(src string, baked []byte) string {
	sum := md5.Sum(baked)
	hash := hex.EncodeToString(sum[:])[:6]

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	parent := filepath.Base(filepath.Dir(src))
	if parent != "" && parent != "." && parent != "/" && parent != "raw_documents" {
		return fmt.Sprintf("%s_%s_%s%s", parent, stem, hash, BakedSuffix)
	}
	return fmt.Sprintf("%s_%s%s", stem, hash, BakedSuffix)
}

// blockHashes returns the md5 of every run of blockSize baked lines
func blockHashes(baked []byte) []string {
	lines := bytes.SplitAfter(baked, []byte("\n"))
	var hashes []string
	for i := 0; i < len(lines); i += blockSize {
		end := i + blockSize
		if end > len(lines) {
			end = len(lines)
		}
		block := bytes.Join(lines[i:end], nil)
		if len(block) == 0 {
			continue
		}
		sum := md5.Sum(block)
		hashes = append(hashes, hex.EncodeToString(sum[:]))
	}
	return hashes
}

func escapeGlob(s string) string {
	r := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`, "{", `\{`, "}", `\}`)
	return r.Replace(s)
}
