// Package mcpsession implements the Remote Session capability: opening a
// transport-appropriate connection to a workload, enumerating its tools,
// and invoking them with structured arguments, either one at a time or as
// a connection-reused batch.
package mcpsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Transport selects which wire protocol a Session speaks. It is a tagged
// choice made once at session-open time from a workload's
// (proxy_mode, transport_type) pair — never a runtime dispatch inside the
// session itself.
type Transport int

const (
	// TransportSSE speaks line-delimited Server-Sent Events: each call POSTs
	// its request and reads the reply as an SSE stream from that POST's own
	// response body. No separate GET event stream is opened.
	TransportSSE Transport = iota
	// TransportStreaming speaks chunked streaming HTTP: one HTTP POST per
	// session whose response body is a newline-delimited stream of JSON-RPC
	// frames.
	TransportStreaming
	// TransportUnsupported marks a (proxy_mode, transport_type) pair this
	// shell cannot speak.
	TransportUnsupported
)

// ResolveTransport maps a workload's (proxy_mode, transport_type) pair to a
// Transport.
func ResolveTransport(proxyMode, transportType string) Transport {
	switch proxyMode {
	case "sse":
		return TransportSSE
	case "streamable-http", "streaming-http", "chunked":
		return TransportStreaming
	default:
		return TransportUnsupported
	}
}

// ErrUnsupportedTransport is returned by Open when the workload's declared
// transport has no known Session implementation.
var ErrUnsupportedTransport = errors.New("unsupported_transport")

// ToolDescriptor describes a tool exposed by a workload.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ContentItem is one element of a tools/call result's content sequence.
// Not every item carries text (images, resource links do not).
type ContentItem struct {
	Type string
	Text string
	// HasText distinguishes an item with an empty string payload from one
	// that carries no text payload at all.
	HasText bool
}

// ToolResult is the normalized response of a tools/call RPC.
type ToolResult struct {
	Content []ContentItem
	IsError bool
}

// Text concatenates the text payloads of every content item, which is how
// the engine folds a structured tool result back into the byte-stream model
// (the engine concatenates payload texts for downstream
// streaming").
func (r ToolResult) Text() string {
	var out string
	for _, item := range r.Content {
		if item.HasText {
			out += item.Text
		}
	}
	return out
}

// Session is the capability a Remote Session opens against a single
// workload: initialize the MCP handshake, enumerate tools, and invoke them.
type Session interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error)
	// BatchCall issues len(argsList) calls to name sequentially over this
	// same session (no reconnect between calls). It returns as many
	// results as succeeded before the first failure, plus a *BatchError
	// describing the partial outcome.
	BatchCall(ctx context.Context, name string, argsList []map[string]any) ([]ToolResult, error)
	Close() error
}

// Options configures session construction, shared by both transports.
type Options struct {
	URL           string
	HTTPClient    *http.Client
	ClientName    string
	ClientVersion string
	// CallTimeout bounds every individual RPC (initialize, tools/list,
	// tools/call); defaults to DefaultCallTimeout.
	CallTimeout time.Duration
}

// DefaultCallTimeout is the per-call deadline applied to every RPC.
const DefaultCallTimeout = 30 * time.Second

// Open opens a Session of the given transport against URL, performing the
// MCP initialize handshake before returning.
func Open(ctx context.Context, transport Transport, opts Options) (Session, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("mcpsession: %w", ErrNoURL)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcpshell"
	}

	switch transport {
	case TransportSSE:
		return newSSESession(ctx, opts)
	case TransportStreaming:
		return newStreamingSession(ctx, opts)
	default:
		return nil, fmt.Errorf("mcpsession: %w", ErrUnsupportedTransport)
	}
}
