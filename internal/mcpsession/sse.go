package mcpsession

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// sseSession speaks line-delimited Server-Sent Events: every RPC is a POST
// whose response body is read as an SSE stream until a "response" (or
// "error") event arrives.
type sseSession struct {
	opts Options
	id   uint64
}

func newSSESession(ctx context.Context, opts Options) (*sseSession, error) {
	s := &sseSession{opts: opts}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sseSession) nextID() uint64 { return atomic.AddUint64(&s.id, 1) }

func (s *sseSession) Initialize(ctx context.Context) error {
	_, err := s.call(ctx, "initialize", initializeParams(s.opts.ClientName, s.opts.ClientVersion))
	if err != nil {
		return fmt.Errorf("mcp initialize over sse: %w", err)
	}
	return nil
}

func (s *sseSession) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	raw, err := s.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding tools/list result: %w", err)
	}
	return result.Tools, nil
}

func (s *sseSession) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	raw, err := s.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return ToolResult{}, err
	}
	return decodeToolsCallResult(raw)
}

func (s *sseSession) BatchCall(ctx context.Context, name string, argsList []map[string]any) ([]ToolResult, error) {
	return batchCall(ctx, s, name, argsList)
}

func (s *sseSession) Close() error { return nil }

// call issues one JSON-RPC request over SSE: POST the request, then read
// the response body as an SSE stream until a terminal event arrives. The
// whole round trip is bounded by opts.CallTimeout, so a remote that never
// replies fails with ErrCallTimeout instead of hanging the caller.
func (s *sseSession) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	id := s.nextID()
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("mcp %s over sse: %w", method, callDeadlineErr(ctx))
		}
		return nil, fmt.Errorf("mcp %s over sse: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mcp %s over sse: status %d: %s", method, resp.StatusCode, raw)
	}

	// Some upstreams close the POST connection as soon as the reply has been
	// written, before the chunked body is formally terminated; tolerate that
	// specific transport quirk on the POST body, never on a parse failure.
	reader := bufio.NewReader(tolerantReader{resp.Body})
	for {
		event, data, err := readSSEEvent(reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("mcp %s over sse: %w", method, callDeadlineErr(ctx))
			}
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("mcp %s over sse: stream closed before response", method)
			}
			return nil, fmt.Errorf("mcp %s over sse: %w", method, err)
		}
		switch event {
		case "response":
			var rpcResp rpcResponse
			if err := json.Unmarshal(data, &rpcResp); err != nil {
				return nil, fmt.Errorf("mcp %s over sse: decoding response event: %w", method, err)
			}
			if rpcResp.Error != nil {
				return nil, rpcResp.Error
			}
			return rpcResp.Result, nil
		case "error":
			var rpcResp rpcResponse
			if err := json.Unmarshal(data, &rpcResp); err != nil {
				return nil, fmt.Errorf("mcp %s over sse: error event: %w", method, err)
			}
			if rpcResp.Error != nil {
				return nil, rpcResp.Error
			}
			return nil, fmt.Errorf("mcp %s over sse: error event with no detail", method)
		case "close":
			return nil, fmt.Errorf("mcp %s over sse: stream closed without response", method)
		default: // "", "notification", or an event type this shell doesn't act on
			continue
		}
	}
}

func readSSEEvent(reader *bufio.Reader) (string, []byte, error) {
	var event string
	var data []byte
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if event == "" && len(data) == 0 {
				continue
			}
			return event, data, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, after...)
			continue
		}
	}
}

// tolerantReader converts io.ErrUnexpectedEOF into a clean io.EOF. Some SSE
// proxies close the connection as soon as the final byte of the reply has
// been written, before the chunked-transfer framing is formally terminated;
// the content already delivered is complete, so the early close is not an
// error.
type tolerantReader struct {
	io.Reader
}

func (t tolerantReader) Read(p []byte) (int, error) {
	n, err := t.Reader.Read(p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
