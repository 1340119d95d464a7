package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cognicore/evolve/pkg/evolve"
)

// EvidenceTool handles the taxonomy_evidence MCP tool.
type EvidenceTool struct {
	engine *evolve.Engine
}

// NewEvidenceTool creates an EvidenceTool backed by engine.
func NewEvidenceTool(engine *evolve.Engine) *EvidenceTool {
	return &EvidenceTool{engine: engine}
}

// Definition returns the MCP tool definition for taxonomy_evidence.
func (t *EvidenceTool) Definition() mcp.Tool {
	return mcp.NewTool("taxonomy_evidence",
		mcp.WithDescription("Record a new evidence observation on an existing taxonomy code."),
		mcp.WithString("code_id",
			mcp.Required(),
			mcp.Description("Taxonomy code, e.g. SCT-004"),
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Source reference for the observation"),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What was observed"),
		),
	)
}

// Handle processes the taxonomy_evidence tool call.
func (t *EvidenceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	codeID := req.GetString("code_id", "")
	res, err := t.engine.AccumulateEvidence(ctx, codeID,
		req.GetString("source", ""),
		req.GetString("description", ""))
	if err != nil {
		notFound, rerr := evolve.ErrorResult(codeID, err)
		if rerr != nil {
			return errorResult(rerr)
		}
		out, jerr := jsonResult(notFound)
		if jerr != nil {
			return nil, jerr
		}
		out.IsError = true
		return out, nil
	}
	return jsonResult(res)
}
