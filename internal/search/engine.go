package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/trustbutverify/internal/index"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/telemetry"
)

// ErrInvalidArgument is returned for unknown modes and non-positive top_k
var ErrInvalidArgument = errors.New("invalid argument")

// Response is the outcome of one search
type Response struct {
	Query    string               `json:"query"`
	Mode     model.SearchMode     `json:"mode"` // Mode actually served
	Results  []model.SearchResult `json:"results"`
	Degraded bool                 `json:"degraded"`
	Notice   string               `json:"notice,omitempty"`
}

// Engine answers queries against one immutable index generation. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	idx        *index.Index
	embedder   index.Embedder
	k1         float64
	b          float64
	candidates int
	logger     *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithBM25 overrides the Okapi BM25 parameters
func WithBM25(k1, b float64) Option {
	return func(e *Engine) {
		e.k1 = k1
		e.b = b
	}
}

// WithCandidates sets how many vector candidates hybrid mode inspects per
// requested result
func WithCandidates(factor int) Option {
	return func(e *Engine) {
		if factor > 0 {
			e.candidates = factor
		}
	}
}

// NewEngine creates an engine over idx. The embedder must be the one the
// index was built with; it embeds queries for vector and hybrid modes.
func NewEngine(idx *index.Index, embedder index.Embedder, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		idx:        idx,
		embedder:   embedder,
		k1:         1.2,
		b:          0.75,
		candidates: 4,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index returns the index generation served by the engine
func (e *Engine) Index() *index.Index { return e.idx }

// ParseMode validates a mode name
func ParseMode(s string) (model.SearchMode, error) {
	switch m := model.SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case model.ModeExhaustive, model.ModeBM25, model.ModeVector, model.ModeHybrid:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown search mode %q", ErrInvalidArgument, s)
}

// Search runs query in the given mode and returns at most topK results
// ordered by score descending, then document, then start line. Exhaustive
// results are unranked and come in document order.
func (e *Engine) Search(ctx context.Context, query string, mode model.SearchMode, topK int) (*Response, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidArgument, topK)
	}

	start := time.Now()
	resp := &Response{Query: query, Mode: mode, Results: []model.SearchResult{}}
	defer func() {
		telemetry.RecordSearch(string(mode), resp.Degraded, time.Since(start))
	}()

	terms := index.UniqueTerms(query)
	if len(terms) == 0 {
		return resp, nil
	}

	if (mode == model.ModeVector || mode == model.ModeHybrid) && !e.idx.HasVectors() {
		e.degrade(resp, e.idx.Degraded())
	}

	var queryVec []float64
	if resp.Mode == model.ModeVector || resp.Mode == model.ModeHybrid {
		v, err := e.embedQuery(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.degrade(resp, fmt.Sprintf("query embedding failed: %v", err))
		} else {
			queryVec = v
		}
	}

	switch resp.Mode {
	case model.ModeExhaustive:
		resp.Results = e.exhaustive(terms, topK)
	case model.ModeBM25:
		resp.Results = e.bm25(terms, topK)
	case model.ModeVector:
		resp.Results = e.vector(queryVec, topK)
	case model.ModeHybrid:
		resp.Results = e.hybrid(queryVec, terms, topK)
	}
	return resp, nil
}

func (e *Engine) degrade(resp *Response, reason string) {
	if reason == "" {
		reason = "dense index unavailable"
	}
	resp.Degraded = true
	resp.Notice = fmt.Sprintf("%s search unavailable (%s); served keyword-only bm25 results", resp.Mode, reason)
	resp.Mode = model.ModeBM25
	e.logger.Warn("search degraded to keyword-only", "reason", reason)
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float64, error) {
	if e.embedder == nil {
		return nil, errors.New("no query embedder")
	}
	v, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(v) != e.idx.Dimension() {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(v), e.idx.Dimension())
	}
	return v, nil
}

// exhaustive returns every line containing a query term, in document and
// line order
func (e *Engine) exhaustive(terms []string, topK int) []model.SearchResult {
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}

	results := []model.SearchResult{}
	for _, name := range e.idx.Documents() {
		doc, _ := e.idx.Document(name)
		for _, line := range doc.Lines {
			if !containsAny(line.Text, want) {
				continue
			}
			results = append(results, model.SearchResult{
				Document:  name,
				StartLine: line.Number,
				EndLine:   line.Number,
				MatchType: model.MatchExact,
				Text:      line.Text,
			})
			if len(results) == topK {
				return results
			}
		}
	}
	return results
}

// bm25Scores computes Okapi BM25 for every chunk containing a query term
func (e *Engine) bm25Scores(terms []string) map[int]float64 {
	n := float64(len(e.idx.Chunks()))
	avg := e.idx.AvgChunkLen()
	scores := make(map[int]float64)
	for _, term := range terms {
		postings := e.idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for _, p := range postings {
			tf := float64(p.Freq)
			norm := 1.0
			if avg > 0 {
				norm = 1 - e.b + e.b*float64(e.idx.ChunkLen(p.Chunk))/avg
			}
			scores[p.Chunk] += idf * tf * (e.k1 + 1) / (tf + e.k1*norm)
		}
	}
	return scores
}

func (e *Engine) bm25(terms []string, topK int) []model.SearchResult {
	chunks := e.idx.Chunks()
	scores := e.bm25Scores(terms)
	results := make([]model.SearchResult, 0, len(scores))
	for id, score := range scores {
		c := chunks[id]
		results = append(results, chunkResult(c, score, model.MatchExact))
	}
	return top(results, topK)
}

func (e *Engine) vector(queryVec []float64, topK int) []model.SearchResult {
	hits := e.vectorHits(queryVec, topK)
	results := make([]model.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = chunkResult(h.chunk, h.score, model.MatchSemantic)
	}
	return results
}

type hit struct {
	chunk model.Chunk
	score float64
}

// vectorHits returns the k chunks most similar to queryVec, ignoring chunks
// with no positive similarity
func (e *Engine) vectorHits(queryVec []float64, k int) []hit {
	var hits []hit
	for _, c := range e.idx.Chunks() {
		if score := index.Cosine(queryVec, c.Embedding); score > 0 {
			hits = append(hits, hit{chunk: c, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		return less(hits[i].score, hits[j].score, hits[i].chunk.Document, hits[j].chunk.Document,
			hits[i].chunk.StartLine, hits[j].chunk.StartLine)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// hybrid discovers candidates by vector similarity, then re-ranks them with
// BM25 and narrows each hit to the lines that carry query terms
func (e *Engine) hybrid(queryVec []float64, terms []string, topK int) []model.SearchResult {
	candidates := e.vectorHits(queryVec, topK*e.candidates)
	lexical := e.bm25Scores(terms)
	maxLex := 0.0
	for _, h := range candidates {
		if s := lexical[h.chunk.ID]; s > maxLex {
			maxLex = s
		}
	}

	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}

	type span struct {
		doc        string
		start, end int
	}
	seen := make(map[span]int, len(candidates))
	results := make([]model.SearchResult, 0, len(candidates))
	for _, h := range candidates {
		lex := 0.0
		if maxLex > 0 {
			lex = lexical[h.chunk.ID] / maxLex
		}
		r := chunkResult(h.chunk, h.score+lex, model.MatchSemantic)
		if lex > 0 {
			doc, _ := e.idx.Document(h.chunk.Document)
			if first, last, ok := pinpoint(doc.Slice(h.chunk.StartLine, h.chunk.EndLine), want); ok {
				r.StartLine = first
				r.EndLine = last
				r.Text = model.JoinText(doc.Slice(first, last))
				r.MatchType = model.MatchHybrid
			}
		}
		// Overlapping chunks can pinpoint the same span; keep the best score
		key := span{r.Document, r.StartLine, r.EndLine}
		if i, dup := seen[key]; dup {
			if r.Score > results[i].Score {
				results[i] = r
			}
			continue
		}
		seen[key] = len(results)
		results = append(results, r)
	}
	return top(results, topK)
}

// pinpoint returns the smallest line span containing every query term hit
func pinpoint(lines []model.Line, want map[string]struct{}) (int, int, bool) {
	first, last := 0, 0
	for _, l := range lines {
		if !containsAny(l.Text, want) {
			continue
		}
		if first == 0 {
			first = l.Number
		}
		last = l.Number
	}
	return first, last, first != 0
}

func containsAny(text string, want map[string]struct{}) bool {
	for _, tok := range index.Tokenize(text) {
		if _, ok := want[tok]; ok {
			return true
		}
	}
	return false
}

func chunkResult(c model.Chunk, score float64, mt model.MatchType) model.SearchResult {
	return model.SearchResult{
		Document:  c.Document,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Score:     score,
		MatchType: mt,
		Text:      c.Text,
	}
}

// top sorts by score descending, document ascending, start line ascending
// and truncates to k
func top(results []model.SearchResult, k int) []model.SearchResult {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		return less(a.Score, b.Score, a.Document, b.Document, a.StartLine, b.StartLine)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func less(scoreA, scoreB float64, docA, docB string, lineA, lineB int) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if docA != docB {
		return docA < docB
	}
	return lineA < lineB
}
