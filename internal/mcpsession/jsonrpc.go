package mcpsession

import (
	"encoding/json"
	"fmt"
)

// protocolVersion is the MCP protocol version sent during initialize.
const protocolVersion = "2024-11-05"

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

type toolsCallResult struct {
	Content []wireContentItem `json:"content"`
	IsError bool              `json:"isError"`
}

type wireContentItem struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

type toolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

func decodeToolsCallResult(raw json.RawMessage) (ToolResult, error) {
	var wire toolsCallResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ToolResult{}, fmt.Errorf("decoding tools/call result: %w", err)
	}
	result := ToolResult{IsError: wire.IsError}
	for _, item := range wire.Content {
		ci := ContentItem{Type: item.Type}
		if item.Text != nil {
			ci.Text = *item.Text
			ci.HasText = true
		}
		result.Content = append(result.Content, ci)
	}
	return result, nil
}

func initializeParams(clientName, clientVersion string) map[string]any {
	if clientVersion == "" {
		clientVersion = "dev"
	}
	return map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}
}
