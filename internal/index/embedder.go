package index

import (
	"context"
	"errors"
	"math"
	"sort"
)

// Embedder converts free text into a dense vector. Implementations may
// require a preparation pass over the chunk corpus before Embed is usable.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Embed(ctx context.Context, text string) ([]float64, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts per call
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// ErrNotPrepared is returned by embedders used before Prepare
var ErrNotPrepared = errors.New("embedder not prepared")

// TFIDFEmbedder is a local, deterministic TF-IDF vectorizer. The vocabulary
// and IDF weights are fixed by Prepare, so an index generation has one
// dimensionality and identical corpora yield identical vectors.
type TFIDFEmbedder struct {
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewTFIDFEmbedder creates an unprepared TF-IDF embedder
func NewTFIDFEmbedder() *TFIDFEmbedder {
	return &TFIDFEmbedder{vocabulary: make(map[string]int)}
}

// Name returns the identifier of this embedder implementation
func (e *TFIDFEmbedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and smoothed IDF values from the corpus
func (e *TFIDFEmbedder) Prepare(ctx context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, tok := range UniqueTerms(text) {
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus")
	}
	// Stable ordering keeps the vector layout independent of map iteration
	sort.Strings(terms)

	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.prepared = true
	return nil
}

// Dimension returns the vector length, 0 before Prepare
func (e *TFIDFEmbedder) Dimension() int { return len(e.idf) }

// Embed computes the L2-normalised TF-IDF vector of text. Terms outside the
// vocabulary are ignored; text with no known terms yields the zero vector.
func (e *TFIDFEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if !e.prepared {
		return nil, ErrNotPrepared
	}
	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range Tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	Normalize(vec)
	return vec, nil
}

// Normalize scales v to unit length in place; the zero vector is left alone
func Normalize(v []float64) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
