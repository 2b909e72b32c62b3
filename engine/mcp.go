package engine

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mugenyume/mugenblock/kit"
)

// RegisterMCP registers engine tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerStatsTool(srv)
	e.registerSweepTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type emptyRequest struct{}

func decodeEmpty(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r emptyRequest
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

func (e *Engine) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mugenblock_stats",
		Description: "Snapshot of the page defense counters: hides, heuristic removals, batches, removal queue depth, quiet mode.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return e.Stats(), nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeEmpty)
}

func (e *Engine) registerSweepTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mugenblock_sweep",
		Description: "Run an immediate fast-selector cleanup over the page and report how many elements were newly hidden.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		n := e.Sweep()
		return map[string]int{"hidden": n}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeEmpty)
}
