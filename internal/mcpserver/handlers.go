package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ppiankov/trustbutverify/internal/audit"
	"github.com/ppiankov/trustbutverify/internal/corpus"
	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/search"
)

// Searcher runs retrieval queries
type Searcher interface {
	Search(ctx context.Context, query string, mode model.SearchMode, topK int) (*search.Response, error)
}

// Verifier runs the three-phase pipeline
type Verifier interface {
	Verify(ctx context.Context, claim, quote, filename string, start, end int) *model.VerificationRecord
}

// FindingStore records findings
type FindingStore interface {
	AppendFinding(ctx context.Context, f model.Finding) (model.Finding, error)
}

// Handlers implements the MCP tools. Nil collaborators make their tools
// report an error instead of failing the server.
type Handlers struct {
	searcher Searcher
	store    corpus.Store
	verifier Verifier
	records  audit.Log
	findings FindingStore
	logger   *slog.Logger
	stream   string

	seqMu  sync.Mutex
	seq    int
	seeded bool
}

// Config collects the tool dependencies
type Config struct {
	Searcher Searcher
	Store    corpus.Store
	Verifier Verifier
	Records  audit.Log // Interactive verifications are appended under the "mcp" report
	Findings FindingStore
	Logger   *slog.Logger
	Session  string // Scopes the record stream; empty uses RecordStream alone
}

// RecordStream prefixes the audit report name interactive verifications are logged under
const RecordStream = "mcp"

// maxAppendAttempts bounds retries when another writer took a sequence number
const maxAppendAttempts = 5

// NewHandlers creates tool handlers
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	stream := RecordStream
	if cfg.Session != "" {
		stream = RecordStream + "-" + cfg.Session
	}
	return &Handlers{
		stream:   stream,
		searcher: cfg.Searcher,
		store:    cfg.Store,
		verifier: cfg.Verifier,
		records:  cfg.Records,
		findings: cfg.Findings,
		logger:   logger,
	}
}

// Search handles the search tool
func (h *Handlers) Search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := search.ParseMode(request.GetString("mode", string(model.ModeHybrid)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return h.search(ctx, request, mode)
}

// SearchHybrid handles the search_hybrid tool
func (h *Handlers) SearchHybrid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.search(ctx, request, model.ModeHybrid)
}

func (h *Handlers) search(ctx context.Context, request mcp.CallToolRequest, mode model.SearchMode) (*mcp.CallToolResult, error) {
	if h.searcher == nil {
		return mcp.NewToolResultError("search index is not loaded"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	topK := request.GetInt("top_k", 5)

	resp, err := h.searcher.Search(ctx, query, mode, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(resp)
}

// ReadLines handles the read_lines tool
func (h *Handlers) ReadLines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.store == nil {
		return mcp.NewToolResultError("corpus store is not configured"), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("filename argument is required and must be a string"), nil
	}
	start, err := request.RequireInt("start_line")
	if err != nil {
		return mcp.NewToolResultError("start_line argument is required and must be a number"), nil
	}
	end, err := request.RequireInt("end_line")
	if err != nil {
		return mcp.NewToolResultError("end_line argument is required and must be a number"), nil
	}

	doc, err := h.store.Get(ctx, filename)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines, err := corpus.Lines(doc, start, end)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(model.JoinTagged(lines)), nil
}

// VerifyClaim handles the verify_claim tool. The record is always returned,
// including for failed verifications.
func (h *Handlers) VerifyClaim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.verifier == nil {
		return mcp.NewToolResultError("judge is not configured"), nil
	}
	claim, err := request.RequireString("claim")
	if err != nil {
		return mcp.NewToolResultError("claim argument is required and must be a string"), nil
	}
	quote, err := request.RequireString("quote")
	if err != nil {
		return mcp.NewToolResultError("quote argument is required and must be a string"), nil
	}
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("filename argument is required and must be a string"), nil
	}
	start, err := request.RequireInt("start_line")
	if err != nil {
		return mcp.NewToolResultError("start_line argument is required and must be a number"), nil
	}
	end, err := request.RequireInt("end_line")
	if err != nil {
		return mcp.NewToolResultError("end_line argument is required and must be a number"), nil
	}

	record := h.verifier.Verify(ctx, claim, quote, filename, start, end)
	if h.records != nil {
		if seq, err := h.appendRecord(ctx, record); err != nil {
			h.logger.Error("append verification record", "stream", h.stream, "error", err)
		} else {
			record.Sequence = seq
		}
	}
	return jsonResult(record)
}

// Stream returns the audit report name verifications are appended under
func (h *Handlers) Stream() string {
	return h.stream
}

// appendRecord assigns the next sequence number of the stream. The counter
// starts after the highest sequence already stored, and moves past numbers
// another writer claimed in the meantime.
func (h *Handlers) appendRecord(ctx context.Context, record *model.VerificationRecord) (int, error) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()

	var err error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		if !h.seeded || errors.Is(err, audit.ErrDuplicate) {
			if err := h.seedSequence(ctx); err != nil {
				return 0, err
			}
		}
		h.seq++
		if err = h.records.Append(ctx, h.stream, h.seq, record); err == nil {
			return h.seq, nil
		}
		if !errors.Is(err, audit.ErrDuplicate) {
			return 0, err
		}
	}
	return 0, err
}

func (h *Handlers) seedSequence(ctx context.Context) error {
	existing, err := h.records.Records(ctx, h.stream)
	if err != nil {
		return fmt.Errorf("read %s records: %w", h.stream, err)
	}
	for _, r := range existing {
		if r.Sequence > h.seq {
			h.seq = r.Sequence
		}
	}
	h.seeded = true
	return nil
}

// LogFinding handles the log_finding tool
func (h *Handlers) LogFinding(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.findings == nil {
		return mcp.NewToolResultError("findings log is not configured"), nil
	}
	topic, err := request.RequireString("topic_id")
	if err != nil {
		return mcp.NewToolResultError("topic_id argument is required and must be a string"), nil
	}
	quote, err := request.RequireString("quoted_text")
	if err != nil {
		return mcp.NewToolResultError("quoted_text argument is required and must be a string"), nil
	}
	source, err := request.RequireString("source_file")
	if err != nil {
		return mcp.NewToolResultError("source_file argument is required and must be a string"), nil
	}

	finding, err := h.findings.AppendFinding(ctx, model.Finding{
		TopicID:    topic,
		Claim:      request.GetString("claim_summary", ""),
		Quote:      quote,
		Source:     source,
		LineStart:  request.GetInt("line_start", 0),
		LineEnd:    request.GetInt("line_end", 0),
		Confidence: request.GetString("confidence", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to log finding: %v", err)), nil
	}
	h.logger.Info("finding logged", "topic", finding.TopicID, "id", finding.ID, "source", finding.Source)
	return jsonResult(finding)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
