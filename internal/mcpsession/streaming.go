package mcpsession

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// streamingSession speaks chunked streaming HTTP: the session opens a
// single long-lived POST whose chunked response body carries one
// newline-delimited JSON-RPC frame per request, in request order. Unlike
// the SSE variant there is no event/data line framing — each chunk boundary
// is a complete JSON object terminated by a newline.
type streamingSession struct {
	opts   Options
	id     uint64
	client *http.Client
	url    string
	body   *io.PipeWriter
	resp   *http.Response
	reader *bufio.Reader
	done   chan struct{}
}

func newStreamingSession(ctx context.Context, opts Options) (*streamingSession, error) {
	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set("Transfer-Encoding", "chunked")

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening streaming-http session: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("opening streaming-http session: status %d: %s", resp.StatusCode, raw)
	}

	s := &streamingSession{
		opts:   opts,
		client: opts.HTTPClient,
		url:    opts.URL,
		body:   pw,
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
		done:   make(chan struct{}),
	}
	if err := s.Initialize(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *streamingSession) nextID() uint64 { return atomic.AddUint64(&s.id, 1) }

func (s *streamingSession) Initialize(ctx context.Context) error {
	_, err := s.call(ctx, "initialize", initializeParams(s.opts.ClientName, s.opts.ClientVersion))
	if err != nil {
		return fmt.Errorf("mcp initialize over streaming-http: %w", err)
	}
	return nil
}

func (s *streamingSession) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
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

func (s *streamingSession) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	raw, err := s.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return ToolResult{}, err
	}
	return decodeToolsCallResult(raw)
}

func (s *streamingSession) BatchCall(ctx context.Context, name string, argsList []map[string]any) ([]ToolResult, error) {
	return batchCall(ctx, s, name, argsList)
}

func (s *streamingSession) Close() error {
	s.body.Close()
	err := s.resp.Body.Close()
	return err
}

// call writes one JSON-RPC request as a newline-terminated frame to the
// request body pipe, then reads frames off the response body until one
// matches the request's ID. The round trip is bounded by opts.CallTimeout,
// so a remote that never replies fails with ErrCallTimeout instead of
// hanging the caller.
func (s *streamingSession) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	id := s.nextID()
	frame, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params})
	if err != nil {
		return nil, err
	}
	frame = append(frame, '\n')

	writeErr := make(chan error, 1)
	go func() {
		_, err := s.body.Write(frame)
		writeErr <- err
	}()

	type result struct {
		resp rpcResponse
		err  error
	}
	readResult := make(chan result, 1)
	go func() {
		for {
			line, err := s.reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) == 0 && err != nil {
				readResult <- result{err: err}
				return
			}
			var resp rpcResponse
			if decErr := json.Unmarshal(bytes.TrimSpace(line), &resp); decErr != nil {
				readResult <- result{err: fmt.Errorf("decoding streaming-http frame: %w", decErr)}
				return
			}
			if resp.ID == id {
				readResult <- result{resp: resp}
				return
			}
			// A frame for a different (earlier, already-answered) call —
			// the session is used sequentially so this should not happen
			// in practice, but skip rather than misattribute.
			if err != nil {
				readResult <- result{err: err}
				return
			}
		}
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			return nil, fmt.Errorf("mcp %s over streaming-http: writing request: %w", method, err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("mcp %s over streaming-http: %w", method, callDeadlineErr(ctx))
	}

	select {
	case r := <-readResult:
		if r.err != nil {
			return nil, fmt.Errorf("mcp %s over streaming-http: %w", method, r.err)
		}
		if r.resp.Error != nil {
			return nil, r.resp.Error
		}
		return r.resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("mcp %s over streaming-http: %w", method, callDeadlineErr(ctx))
	}
}
