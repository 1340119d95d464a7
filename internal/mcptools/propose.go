package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cognicore/evolve/pkg/evolve"
)

// ProposeTool handles the taxonomy_propose MCP tool.
type ProposeTool struct {
	engine *evolve.Engine
}

// NewProposeTool creates a ProposeTool backed by engine.
func NewProposeTool(engine *evolve.Engine) *ProposeTool {
	return &ProposeTool{engine: engine}
}

// Definition returns the MCP tool definition for taxonomy_propose.
func (t *ProposeTool) Definition() mcp.Tool {
	return mcp.NewTool("taxonomy_propose",
		mcp.WithDescription(
			"Propose a technique description. Adds evidence to the closest existing code "+
				"when it scores at or above the threshold, otherwise creates a new candidate code.",
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Free-text description of the observed technique"),
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Source reference for the observation (paper, report, URL)"),
		),
		mcp.WithString("evidence",
			mcp.Description("Evidence text to record instead of the description"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum combined similarity for a match (default from config)"),
		),
	)
}

// Handle processes the taxonomy_propose tool call.
func (t *ProposeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threshold := floatArg(req, "threshold", t.engine.Defaults().Threshold)
	res, err := t.engine.Propose(ctx, evolve.ProposeRequest{
		Description: req.GetString("description", ""),
		Source:      req.GetString("source", ""),
		Evidence:    req.GetString("evidence", ""),
		Threshold:   &threshold,
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}
