package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mugenyume/mugenblock/kit"
)

// RegisterMCP registers settings tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerGetTool(srv)
	s.registerSetModeTool(srv)
	s.registerRelaxTool(srv)
	s.registerBreakageTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func decodeArgs[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

type siteArgs struct {
	Site string `json:"site"`
}

func (s *Service) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mugenblock_settings_get",
		Description: "Resolve the effective filtering settings for a site.",
		InputSchema: inputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Site hostname."},
		}, []string{"site"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		args := req.(*siteArgs)
		return s.Get(ctx, args.Site)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[siteArgs])
}

func (s *Service) registerSetModeTool(srv *mcp.Server) {
	type setModeArgs struct {
		Site string `json:"site"`
		Mode string `json:"mode"`
	}
	tool := &mcp.Tool{
		Name:        "mugenblock_settings_set_mode",
		Description: "Set the filtering mode for a site: off, standard, or aggressive.",
		InputSchema: inputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Site hostname."},
			"mode": map[string]any{"type": "string", "enum": []string{ModeOff, ModeStandard, ModeAggressive}},
		}, []string{"site", "mode"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		args := req.(*setModeArgs)
		return s.SetMode(ctx, args.Site, args.Mode)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[setModeArgs])
}

func (s *Service) registerRelaxTool(srv *mcp.Server) {
	type relaxArgs struct {
		Site    string `json:"site"`
		Minutes int    `json:"minutes"`
	}
	tool := &mcp.Tool{
		Name: "mugenblock_settings_relax",
		Description: fmt.Sprintf(
			"Pause filtering on a site for a number of minutes (clamped to %d-%d). Filtering resumes automatically.",
			RelaxMinMinutes, RelaxMaxMinutes),
		InputSchema: inputSchema(map[string]any{
			"site":    map[string]any{"type": "string", "description": "Site hostname."},
			"minutes": map[string]any{"type": "integer", "description": "Pause length in minutes."},
		}, []string{"site", "minutes"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		args := req.(*relaxArgs)
		return s.Relax(ctx, args.Site, args.Minutes)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[relaxArgs])
}

func (s *Service) registerBreakageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mugenblock_settings_breakage",
		Description: "Report that filtering broke a site. Repeated reports turn filtering off for that site.",
		InputSchema: inputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Site hostname."},
		}, []string{"site"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		args := req.(*siteArgs)
		return s.ReportBreakage(ctx, args.Site)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[siteArgs])
}
