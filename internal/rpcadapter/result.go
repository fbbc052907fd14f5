package rpcadapter

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// textResult wraps a plain string as a single-content-item tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errResult reports err as a tool-level error, not a transport fault — the
// MCP convention for "the tool ran and it failed" versus "the call itself
// could not be made".
func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
