package rpcadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpshell/internal/dispatch"
	"mcpshell/internal/registry"
)

func TestSummarizeDescription_TableDriven(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"short description is unchanged", "search text", "search text"},
		{"embedded newline flattened to a space", "search\ntext", "search text"},
		{"crlf flattened to a space", "search\r\ntext", "search text"},
		{"exactly at the limit is not truncated", strings.Repeat("a", 200), strings.Repeat("a", 200)},
		{"one over the limit is truncated with an ellipsis", strings.Repeat("a", 201), strings.Repeat("a", 200) + "..."},
		{"empty description stays empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, summarizeDescription(tc.in))
		})
	}
}

// newFakeSSEServer answers every JSON-RPC request with a single "response"
// SSE event whose result is produced by the given handler.
func newFakeSSEServer(t *testing.T, handler func(method string) (any, error)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))

		result, err := handler(req.Method)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: {\"jsonrpc\":\"2.0\",\"id\":%d,\"error\":{\"code\":-1,\"message\":%q}}\n\n", req.ID, err.Error())
			return
		}
		resultRaw, _ := json.Marshal(result)
		fmt.Fprintf(w, "event: response\ndata: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":%s}\n\n", req.ID, resultRaw)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFakeRegistry(t *testing.T, workloads []registry.Workload) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1beta/workloads", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			Workloads []registry.Workload `json:"workloads"`
		}{Workloads: workloads})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func baseFunc(url string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return url, nil }
}

func firstText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListAllTools_GroupedHumanReadableFormat(t *testing.T) {
	longDescription := strings.Repeat("finds lines matching a pattern. ", 10) + "tail"
	toolSrv := newFakeSSEServer(t, func(method string) (any, error) {
		switch method {
		case "initialize":
			return map[string]any{}, nil
		case "tools/list":
			return map[string]any{"tools": []map[string]any{
				{"name": "grep", "description": "search\ntext for a pattern"},
				{"name": "wc", "description": longDescription},
			}}, nil
		default:
			return nil, fmt.Errorf("unexpected method %s", method)
		}
	})
	registrySrv := newFakeRegistry(t, []registry.Workload{
		{Name: "docs", Status: registry.StatusRunning, URL: toolSrv.URL, ProxyMode: "sse"},
	})

	d := dispatch.New(baseFunc(registrySrv.URL), registry.NewClient(), 0, nil)
	a := New(nil, d)

	result, _, err := a.listAllTools(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	text := firstText(t, result)

	assert.Contains(t, text, "\n**docs**\n")
	assert.Contains(t, text, "  Status: running\n")
	assert.Contains(t, text, "grep (search text for a pattern)", "embedded newline flattened to a space")
	assert.NotContains(t, text, longDescription, "description longer than the limit is truncated")
	assert.Contains(t, text, "wc ("+longDescription[:200]+"...)", "truncation keeps the leading 200 characters and adds an ellipsis")
}

func TestListAllTools_NoWorkloadsReturnsPlainMessage(t *testing.T) {
	registrySrv := newFakeRegistry(t, nil)
	d := dispatch.New(baseFunc(registrySrv.URL), registry.NewClient(), 0, nil)
	a := New(nil, d)

	result, _, err := a.listAllTools(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "No MCP servers found", firstText(t, result))
}

func TestListAllTools_IntrospectionErrorIsReportedPerWorkload(t *testing.T) {
	registrySrv := newFakeRegistry(t, []registry.Workload{
		{Name: "unreachable", Status: registry.StatusRunning, URL: "http://127.0.0.1:1", ProxyMode: "sse"},
	})
	d := dispatch.New(baseFunc(registrySrv.URL), registry.NewClient(), 0, nil)
	a := New(nil, d)

	result, _, err := a.listAllTools(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	text := firstText(t, result)
	assert.Contains(t, text, "\n**unreachable**\n")
	assert.Contains(t, text, "  Error: ")
}
