package mcpsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToolsCallResult_MixedContent(t *testing.T) {
	raw := []byte(`{"content":[{"type":"text","text":"hello"},{"type":"image"}],"isError":false}`)
	result, err := decodeToolsCallResult(raw)
	require.NoError(t, err)
	require.Len(t, result.Content, 2)
	assert.True(t, result.Content[0].HasText)
	assert.Equal(t, "hello", result.Content[0].Text)
	assert.False(t, result.Content[1].HasText)
}

func TestDecodeToolsCallResult_IsErrorPropagates(t *testing.T) {
	raw := []byte(`{"content":[],"isError":true}`)
	result, err := decodeToolsCallResult(raw)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDecodeToolsCallResult_RejectsMalformedJSON(t *testing.T) {
	_, err := decodeToolsCallResult([]byte(`not json`))
	assert.Error(t, err)
}

func TestInitializeParams_DefaultsVersionToDev(t *testing.T) {
	params := initializeParams("mcpshell", "")
	clientInfo := params["clientInfo"].(map[string]any)
	assert.Equal(t, "dev", clientInfo["version"])
	assert.Equal(t, "mcpshell", clientInfo["name"])
	assert.Equal(t, protocolVersion, params["protocolVersion"])
}

func TestInitializeParams_KeepsExplicitVersion(t *testing.T) {
	params := initializeParams("mcpshell", "1.2.3")
	clientInfo := params["clientInfo"].(map[string]any)
	assert.Equal(t, "1.2.3", clientInfo["version"])
}

func TestRPCError_ErrorFormatsCodeAndMessage(t *testing.T) {
	e := &rpcError{Code: -32601, Message: "method not found"}
	assert.Equal(t, "mcp error -32601: method not found", e.Error())
}

func TestRPCError_NilErrorIsEmptyString(t *testing.T) {
	var e *rpcError
	assert.Equal(t, "", e.Error())
}
