package search

import (
	"context"
	"sync/atomic"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// Holder publishes the current engine. Rebuilds construct a new engine and
// Swap it in; readers never observe a partially built index.
type Holder struct {
	current atomic.Pointer[Engine]
}

// NewHolder creates a holder serving e
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.current.Store(e)
	return h
}

// Load returns the current engine
func (h *Holder) Load() *Engine {
	return h.current.Load()
}

// Swap replaces the current engine and returns the previous one
func (h *Holder) Swap(e *Engine) *Engine {
	return h.current.Swap(e)
}

// Search delegates to the current engine
func (h *Holder) Search(ctx context.Context, query string, mode model.SearchMode, topK int) (*Response, error) {
	return h.Load().Search(ctx, query, mode, topK)
}
