package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server exposing search, read_lines, verify_claim and log_finding
func New(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer("trustbutverify", version)
	RegisterTools(s, h)
	return s
}

// RegisterTools registers every tool on s
func RegisterTools(s *server.MCPServer, h *Handlers) {
	s.AddTool(mcp.Tool{
		Name:        "search",
		Description: "Search the canonical corpus. Modes: exhaustive (literal lines), bm25 (keywords), vector (semantic), hybrid (semantic discovery then keyword pinpoint).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"exhaustive", "bm25", "vector", "hybrid"},
					"description": "Retrieval mode (default: hybrid)",
					"default":     "hybrid",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}, h.Search)

	s.AddTool(mcp.Tool{
		Name:        "search_hybrid",
		Description: "Hybrid search: find semantically related chunks, then pinpoint the exact lines containing query terms.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}, h.SearchHybrid)

	s.AddTool(mcp.Tool{
		Name:        "read_lines",
		Description: "Read an inclusive line range of a canonical document, with line tags.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Canonical document filename, e.g. minutes_baked.txt",
				},
				"start_line": map[string]interface{}{
					"type":        "number",
					"description": "First line, 1-based",
				},
				"end_line": map[string]interface{}{
					"type":        "number",
					"description": "Last line, inclusive",
				},
			},
			Required: []string{"filename", "start_line", "end_line"},
		},
	}, h.ReadLines)

	s.AddTool(mcp.Tool{
		Name:        "verify_claim",
		Description: "Verify a claim against a cited line range: existence, literal quote match, then a multi-model jury. Returns the full verification record.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"claim": map[string]interface{}{
					"type":        "string",
					"description": "The assertion being made",
				},
				"quote": map[string]interface{}{
					"type":        "string",
					"description": "The literal text the claim relies on",
				},
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Canonical document filename",
				},
				"start_line": map[string]interface{}{
					"type":        "number",
					"description": "First cited line",
				},
				"end_line": map[string]interface{}{
					"type":        "number",
					"description": "Last cited line",
				},
			},
			Required: []string{"claim", "quote", "filename", "start_line", "end_line"},
		},
	}, h.VerifyClaim)

	s.AddTool(mcp.Tool{
		Name:        "log_finding",
		Description: "Record an evidence clip against an investigation topic.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"topic_id": map[string]interface{}{
					"type":        "string",
					"description": "Investigation topic",
				},
				"claim_summary": map[string]interface{}{
					"type":        "string",
					"description": "What the evidence shows",
				},
				"quoted_text": map[string]interface{}{
					"type":        "string",
					"description": "Verbatim quote from the source",
				},
				"source_file": map[string]interface{}{
					"type":        "string",
					"description": "Canonical document filename",
				},
				"line_start": map[string]interface{}{
					"type":        "number",
					"description": "First line of the quote",
				},
				"line_end": map[string]interface{}{
					"type":        "number",
					"description": "Last line of the quote",
				},
				"confidence": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"High", "Medium", "Low"},
					"description": "Confidence (default: Medium)",
				},
			},
			Required: []string{"topic_id", "quoted_text", "source_file", "line_start", "line_end"},
		},
	}, h.LogFinding)
}
