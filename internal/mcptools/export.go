package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cognicore/evolve/pkg/evolve"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// PatternsTool handles the taxonomy_patterns MCP tool.
type PatternsTool struct {
	engine *evolve.Engine
}

// NewPatternsTool creates a PatternsTool backed by engine.
func NewPatternsTool(engine *evolve.Engine) *PatternsTool {
	return &PatternsTool{engine: engine}
}

// Definition returns the MCP tool definition for taxonomy_patterns.
func (t *PatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("taxonomy_patterns",
		mcp.WithDescription(
			"Derive word-boundary regex patterns from a code's keywords for content scanners. "+
				"Unknown codes return an empty list.",
		),
		mcp.WithString("code_id",
			mcp.Required(),
			mcp.Description("Taxonomy code, e.g. SCT-004"),
		),
	)
}

// Handle processes the taxonomy_patterns tool call.
func (t *PatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pats, err := t.engine.GeneratePatterns(ctx, req.GetString("code_id", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(pats)
}

// ExportTool handles the taxonomy_export MCP tool.
type ExportTool struct {
	engine *evolve.Engine
}

// NewExportTool creates an ExportTool backed by engine.
func NewExportTool(engine *evolve.Engine) *ExportTool {
	return &ExportTool{engine: engine}
}

// Definition returns the MCP tool definition for taxonomy_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("taxonomy_export",
		mcp.WithDescription("Return the full taxonomy document as JSON."),
	)
}

// Handle processes the taxonomy_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := t.engine.Export(ctx)
	if err != nil {
		return errorResult(err)
	}
	data, err := taxonomy.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode taxonomy: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
