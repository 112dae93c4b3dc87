package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/model"
)

// Posting records the occurrences of one term in one chunk
type Posting struct {
	Chunk int // Index into Index.Chunks
	Freq  int
}

// BuildOptions controls chunking and embedding during Build
type BuildOptions struct {
	ChunkSize int
	Overlap   int
	Embedder  Embedder // nil builds a keyword-only index
	Logger    *slog.Logger
}

// Index holds the keyword and dense indexes of one corpus generation. It is
// never mutated after Build returns and is safe for concurrent reads.
type Index struct {
	chunks    []model.Chunk
	postings  map[string][]Posting
	chunkLen  []int
	avgLen    float64
	docs      map[string]*model.CanonicalDocument
	docNames  []string
	dimension int
	embedder  string
	degraded  string
	builtAt   time.Time
}

// Stats summarises an index generation
type Stats struct {
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Terms     int       `json:"terms"`
	Dimension int       `json:"dimension"`
	Embedder  string    `json:"embedder,omitempty"`
	Degraded  string    `json:"degraded,omitempty"`
	BuiltAt   time.Time `json:"built_at"`
}

// Build compiles docs into a fresh index. Documents are processed in
// filename order so the result does not depend on the order of docs.
// Embedding failures do not fail the build; the index is then keyword-only
// and Degraded reports why.
func Build(ctx context.Context, docs []*model.CanonicalDocument, opts BuildOptions) (*Index, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", opts.ChunkSize, opts.Overlap)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sorted := make([]*model.CanonicalDocument, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	idx := &Index{
		postings: make(map[string][]Posting),
		docs:     make(map[string]*model.CanonicalDocument, len(sorted)),
		builtAt:  time.Now().UTC(),
	}

	for _, doc := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := idx.docs[doc.Filename]; dup {
			return nil, fmt.Errorf("duplicate document %q", doc.Filename)
		}
		idx.docs[doc.Filename] = doc
		idx.docNames = append(idx.docNames, doc.Filename)

		for _, c := range Chunk(doc, opts.ChunkSize, opts.Overlap) {
			c.ID = len(idx.chunks)
			idx.chunks = append(idx.chunks, c)
			idx.addPostings(c)
		}
	}

	total := 0
	for _, n := range idx.chunkLen {
		total += n
	}
	if len(idx.chunkLen) > 0 {
		idx.avgLen = float64(total) / float64(len(idx.chunkLen))
	}

	switch {
	case opts.Embedder == nil:
		idx.degraded = "no embedder configured"
	case len(idx.chunks) == 0:
		idx.degraded = "corpus is empty"
	default:
		idx.embedder = opts.Embedder.Name()
		if err := idx.embed(ctx, opts.Embedder); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			idx.dropVectors(fmt.Sprintf("embedding unavailable: %v", err))
			logger.Warn("index is keyword-only", "embedder", opts.Embedder.Name(), "error", err)
		}
	}

	logger.Info("index built",
		"documents", len(idx.docNames),
		"chunks", len(idx.chunks),
		"terms", len(idx.postings),
		"dimension", idx.dimension)
	return idx, nil
}

// BuildFromStore loads every document listed by store and builds an index
func BuildFromStore(ctx context.Context, store corpus.Store, opts BuildOptions) (*Index, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	docs := make([]*model.CanonicalDocument, 0, len(names))
	for _, name := range names {
		doc, err := store.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		docs = append(docs, doc)
	}
	return Build(ctx, docs, opts)
}

func (idx *Index) addPostings(c model.Chunk) {
	tokens := Tokenize(c.Text)
	idx.chunkLen = append(idx.chunkLen, len(tokens))

	freq := make(map[string]int)
	order := make([]string, 0)
	for _, tok := range tokens {
		if freq[tok] == 0 {
			order = append(order, tok)
		}
		freq[tok]++
	}
	// Chunks are added in ID order, so each posting list stays sorted by chunk
	for _, tok := range order {
		idx.postings[tok] = append(idx.postings[tok], Posting{Chunk: c.ID, Freq: freq[tok]})
	}
}

func (idx *Index) embed(ctx context.Context, embedder Embedder) error {
	texts := make([]string, len(idx.chunks))
	for i, c := range idx.chunks {
		texts[i] = c.Text
	}
	if err := embedder.Prepare(ctx, texts); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	var vectors [][]float64
	if batch, ok := embedder.(BatchEmbedder); ok {
		v, err := batch.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
	} else {
		vectors = make([][]float64, len(texts))
		for i, text := range texts {
			v, err := embedder.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = v
		}
	}
	if len(vectors) != len(idx.chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(idx.chunks))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("embedder returned empty vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("chunk %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	for i := range idx.chunks {
		idx.chunks[i].Embedding = vectors[i]
	}
	idx.dimension = dim
	return nil
}

func (idx *Index) dropVectors(reason string) {
	for i := range idx.chunks {
		idx.chunks[i].Embedding = nil
	}
	idx.dimension = 0
	idx.degraded = reason
}

// Chunks returns all chunks in ID order. Callers must not modify them.
func (idx *Index) Chunks() []model.Chunk { return idx.chunks }

// Postings returns the posting list of a single term
func (idx *Index) Postings(term string) []Posting { return idx.postings[term] }

// DocFreq returns the number of chunks containing term
func (idx *Index) DocFreq(term string) int { return len(idx.postings[term]) }

// ChunkLen returns the number of index terms in chunk id
func (idx *Index) ChunkLen(id int) int { return idx.chunkLen[id] }

// AvgChunkLen returns the mean chunk length in terms
func (idx *Index) AvgChunkLen() float64 { return idx.avgLen }

// Document returns an indexed document by filename
func (idx *Index) Document(name string) (*model.CanonicalDocument, bool) {
	doc, ok := idx.docs[name]
	return doc, ok
}

// Documents returns indexed filenames in ascending order
func (idx *Index) Documents() []string { return idx.docNames }

// Dimension returns the shared vector length, 0 for keyword-only indexes
func (idx *Index) Dimension() int { return idx.dimension }

// HasVectors reports whether the dense index is usable
func (idx *Index) HasVectors() bool { return idx.dimension > 0 }

// Degraded returns why the dense index is unavailable, empty when it is
func (idx *Index) Degraded() string { return idx.degraded }

// Stats returns summary counts for the index
func (idx *Index) Stats() Stats {
	return Stats{
		Documents: len(idx.docNames),
		Chunks:    len(idx.chunks),
		Terms:     len(idx.postings),
		Dimension: idx.dimension,
		Embedder:  idx.embedder,
		Degraded:  idx.degraded,
		BuiltAt:   idx.builtAt,
	}
}
