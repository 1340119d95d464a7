package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cognicore/evolve/pkg/evolve"
)

// PromoteTool handles the taxonomy_promote MCP tool.
type PromoteTool struct {
	engine *evolve.Engine
}

// NewPromoteTool creates a PromoteTool backed by engine.
func NewPromoteTool(engine *evolve.Engine) *PromoteTool {
	return &PromoteTool{engine: engine}
}

// Definition returns the MCP tool definition for taxonomy_promote.
func (t *PromoteTool) Definition() mcp.Tool {
	return mcp.NewTool("taxonomy_promote",
		mcp.WithDescription(
			"Promote candidate codes corroborated by enough distinct sources to confirmed.",
		),
		mcp.WithNumber("min_sources",
			mcp.Description("Minimum distinct evidence sources (default from config)"),
		),
	)
}

// Handle processes the taxonomy_promote tool call.
func (t *PromoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	promoted, err := t.engine.PromoteCandidates(ctx, intArg(req, "min_sources", t.engine.Defaults().MinSources))
	if err != nil {
		return errorResult(err)
	}
	if len(promoted) == 0 {
		return mcp.NewToolResultText(NoPromotions), nil
	}
	return jsonResult(promoted)
}

// DeprecateTool handles the taxonomy_deprecate MCP tool.
type DeprecateTool struct {
	engine *evolve.Engine
}

// NewDeprecateTool creates a DeprecateTool backed by engine.
func NewDeprecateTool(engine *evolve.Engine) *DeprecateTool {
	return &DeprecateTool{engine: engine}
}

// Definition returns the MCP tool definition for taxonomy_deprecate.
func (t *DeprecateTool) Definition() mcp.Tool {
	return mcp.NewTool("taxonomy_deprecate",
		mcp.WithDescription("Deprecate codes that have not been observed for a number of days."),
		mcp.WithNumber("days",
			mcp.Description("Days without new evidence before a code is deprecated (default from config)"),
		),
	)
}

// Handle processes the taxonomy_deprecate tool call.
func (t *DeprecateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flagged, err := t.engine.DeprecationCheck(ctx, intArg(req, "days", t.engine.Defaults().DaysUnseen))
	if err != nil {
		return errorResult(err)
	}
	if len(flagged) == 0 {
		return mcp.NewToolResultText(NoDeprecations), nil
	}
	return jsonResult(flagged)
}
