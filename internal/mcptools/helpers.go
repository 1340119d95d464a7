// Package mcptools exposes the taxonomy engine as MCP tools.
//
// Each tool follows the same shape:
// - A struct holding the *evolve.Engine, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() runs one engine operation and returns its JSON result
//
// Caller mistakes (missing arguments, unknown codes) come back as tool error
// results, never as protocol errors.
package mcptools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
)

// Messages returned when a lifecycle check changes nothing.
const (
	NoPromotions   = "No candidates met promotion threshold."
	NoDeprecations = "No codes flagged for deprecation."
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a float argument from a tool request.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult turns caller errors into tool errors and passes anything else
// through as a handler failure.
func errorResult(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, internalerr.ErrInvalidInput) || errors.Is(err, internalerr.ErrNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}
