package rpcadapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestTextResult_WrapsTextContent(t *testing.T) {
	res := textResult("hello")
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hello", tc.Text)
	assert.False(t, res.IsError)
}

func TestErrResult_SetsIsErrorAndMessage(t *testing.T) {
	res := errResult(errors.New("boom"))
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "boom", tc.Text)
	assert.True(t, res.IsError)
}

func TestMarshalJSON_RoundTripsSimpleValue(t *testing.T) {
	raw, err := marshalJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}
