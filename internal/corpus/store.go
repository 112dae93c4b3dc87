package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/trustbutverify/internal/model"
)

// Store supplies immutable canonical documents by filename
type Store interface {
	Get(ctx context.Context, filename string) (*model.CanonicalDocument, error)
	List(ctx context.Context) ([]string, error)
}

// DirStore serves baked files from a directory tree. Parsed documents
// are cached; they are immutable, so concurrent readers share them.
type DirStore struct {
	root    string
	pattern string
	docs    *gocache.Cache
	logger  *slog.Logger
}

// NewDirStore creates a store rooted at root listing files that match pattern
func NewDirStore(root, pattern string, ttl time.Duration, logger *slog.Logger) *DirStore {
	if pattern == "" {
		pattern = "**/*" + BakedSuffix
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DirStore{
		root:    root,
		pattern: pattern,
		docs:    gocache.New(ttl, 2*ttl),
		logger:  logger,
	}
}

// Root returns the corpus root directory
func (s *DirStore) Root() string {
	return s.root
}

// Flush drops every cached document so the next Get rereads from disk
func (s *DirStore) Flush() {
	s.docs.Flush()
}

// Get loads and parses a document, relative to the root
func (s *DirStore) Get(ctx context.Context, filename string) (*model.CanonicalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := cleanName(filename)
	if err != nil {
		return nil, err
	}
	if v, ok := s.docs.Get(name); ok {
		return v.(*model.CanonicalDocument), nil
	}

	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) && !strings.Contains(name, "/") {
		// Bare filenames may live in a subdirectory; accept a unique match
		if found, ok := s.findBase(name); ok {
			f, err = os.Open(filepath.Join(s.root, filepath.FromSlash(found)))
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	doc, err := Parse(name, f)
	if err != nil {
		return nil, err
	}
	s.docs.SetDefault(name, doc)
	s.logger.Debug("loaded canonical document", "file", name, "lines", doc.MaxLine())
	return doc, nil
}

func (s *DirStore) findBase(name string) (string, bool) {
	matches, err := doublestar.Glob(os.DirFS(s.root), "**/"+escapeGlob(name), doublestar.WithFilesOnly())
	if err != nil || len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}

// List returns every matching filename in lexical order
func (s *DirStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(os.DirFS(s.root), s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ResolveCitationPath turns a report-relative link target into a corpus
// filename. Targets that resolve outside root are rejected.
func ResolveCitationPath(root, target string) (string, bool) {
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "", false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	var abs string
	if filepath.IsAbs(target) {
		abs = filepath.Clean(target)
	} else {
		abs = filepath.Join(absRoot, filepath.FromSlash(target))
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// Reports often link ../data/canonical/<file>; fall back to the bare name
		base := filepath.Base(abs)
		if _, statErr := os.Stat(filepath.Join(absRoot, base)); statErr == nil {
			return base, true
		}
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func cleanName(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: empty filename", ErrInvalidPath)
	}
	name := filepath.ToSlash(filepath.Clean(filename))
	if filepath.IsAbs(filename) || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, filename)
	}
	return name, nil
}

// MemoryStore holds documents in memory, for tests and embedded corpora
type MemoryStore struct {
	docs map[string]*model.CanonicalDocument
}

// NewMemoryStore creates a store over the given documents
func NewMemoryStore(docs ...*model.CanonicalDocument) *MemoryStore {
	m := &MemoryStore{docs: make(map[string]*model.CanonicalDocument, len(docs))}
	for _, d := range docs {
		m.docs[d.Filename] = d
	}
	return m
}

// Get returns the named document
func (m *MemoryStore) Get(ctx context.Context, filename string) (*model.CanonicalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := m.docs[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	return doc, nil
}

// List returns all filenames in lexical order
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FromText builds a canonical document from plain text, numbering lines from 1
func FromText(filename, text string) *model.CanonicalDocument {
	text = strings.TrimSuffix(text, "\n")
	doc := &model.CanonicalDocument{Filename: filename}
	if text == "" {
		return doc
	}
	for i, l := range strings.Split(text, "\n") {
		doc.Lines = append(doc.Lines, model.Line{Number: i + 1, Text: l})
	}
	return doc
}
