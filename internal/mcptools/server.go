package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cognicore/evolve/pkg/evolve"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewServer creates an MCP server with every taxonomy tool registered.
func NewServer(engine *evolve.Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"evolve",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, tool := range Tools(engine) {
		s.AddTool(tool.Definition(), tool.Handle)
	}
	return s
}

// Tool is implemented by every handler in this package.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Tools returns one handler per taxonomy operation.
func Tools(engine *evolve.Engine) []Tool {
	return []Tool{
		NewProposeTool(engine),
		NewEvidenceTool(engine),
		NewPromoteTool(engine),
		NewDeprecateTool(engine),
		NewPatternsTool(engine),
		NewExportTool(engine),
	}
}
