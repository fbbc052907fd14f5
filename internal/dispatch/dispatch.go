// Package dispatch resolves a ToolStage's (server, name) pair into an open
// Remote Session, tying together the Workload Registry Client and the MCP
// session transports, and implements workload self-filtering.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mcpshell/internal/mcpsession"
	"mcpshell/internal/registry"
	"mcpshell/internal/telemetry"
)

// OwnToolNames are the four meta-RPC operations this shell publishes to the
// agent. A workload whose advertised tool set is a superset of this set is
// elided from discovery to prevent infinite recursion when an operator
// accidentally registers this process with the registry itself.
var OwnToolNames = map[string]bool{
	"execute_pipeline":              true,
	"list_all_tools":                true,
	"list_available_shell_commands": true,
	"get_tool_details":              true,
}

// DispatchError wraps one of the reasons a
// ToolDispatchError: workload_not_found, workload_not_running, no_url, or
// unsupported_transport. It is always stage-fatal and config-level (never
// a remote/network failure — those surface as ToolCallError instead).
type DispatchError struct {
	Reason string
	Server string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Server)
}

func newDispatchError(reason error, server string) *DispatchError {
	return &DispatchError{Reason: reason.Error(), Server: server}
}

// Dispatcher resolves tool-stage targets to open sessions.
type Dispatcher struct {
	registryBase func(ctx context.Context) (string, error)
	client       *registry.Client
	callTimeout  time.Duration
	obs          *telemetry.Observability
}

// New builds a Dispatcher. registryBase resolves the registry's base URL
// (normally Discovery.Discover(...).BaseURL, memoized by the caller).
func New(registryBase func(ctx context.Context) (string, error), client *registry.Client, callTimeout time.Duration, obs *telemetry.Observability) *Dispatcher {
	if obs == nil {
		obs = telemetry.New(nil, nil, nil)
	}
	if callTimeout <= 0 {
		callTimeout = mcpsession.DefaultCallTimeout
	}
	return &Dispatcher{registryBase: registryBase, client: client, callTimeout: callTimeout, obs: obs}
}

// Open resolves server to a workload, validates it is running and
// addressable, and opens a Session against it.
func (d *Dispatcher) Open(ctx context.Context, server string) (mcpsession.Session, error) {
	base, err := d.registryBase(ctx)
	if err != nil {
		return nil, err
	}
	workload, err := d.client.GetWorkload(ctx, base, server)
	if err != nil {
		if errors.Is(err, registry.ErrWorkloadNotFound) {
			return nil, newDispatchError(mcpsession.ErrWorkloadNotFound, server)
		}
		return nil, err
	}
	if !workload.Running() {
		return nil, newDispatchError(mcpsession.ErrWorkloadNotRunning, server)
	}
	if workload.URL == "" {
		return nil, newDispatchError(mcpsession.ErrNoURL, server)
	}
	transport := mcpsession.ResolveTransport(workload.ProxyMode, workload.TransportType)
	if transport == mcpsession.TransportUnsupported {
		return nil, newDispatchError(mcpsession.ErrUnsupportedTransport, server)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	session, err := mcpsession.Open(callCtx, transport, mcpsession.Options{URL: workload.URL, CallTimeout: d.callTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening session to %s: %w", server, err)
	}
	return session, nil
}

// ListWorkloads returns the fleet, with self-filtering applied: a workload
// advertising a superset of OwnToolNames is dropped.
func (d *Dispatcher) ListWorkloads(ctx context.Context) ([]registry.Workload, error) {
	base, err := d.registryBase(ctx)
	if err != nil {
		return nil, err
	}
	workloads, err := d.client.ListWorkloads(ctx, base)
	if err != nil {
		return nil, err
	}

	var filtered []registry.Workload
	for _, w := range workloads {
		if !w.Running() {
			continue
		}
		toolNames, err := d.toolNames(ctx, w)
		if err != nil {
			// A workload we cannot introspect is kept: self-filtering
			// only ever removes a workload we can positively identify as
			// this process, never one we failed to reach.
			filtered = append(filtered, w)
			continue
		}
		if isSuperset(toolNames, OwnToolNames) {
			continue
		}
		filtered = append(filtered, w)
	}
	return filtered, nil
}

// ListTools enumerates a single workload's tools, opening a short-lived
// session.
func (d *Dispatcher) ListTools(ctx context.Context, w registry.Workload) ([]mcpsession.ToolDescriptor, error) {
	transport := mcpsession.ResolveTransport(w.ProxyMode, w.TransportType)
	if transport == mcpsession.TransportUnsupported {
		return nil, newDispatchError(mcpsession.ErrUnsupportedTransport, w.Name)
	}
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	session, err := mcpsession.Open(callCtx, transport, mcpsession.Options{URL: w.URL, CallTimeout: d.callTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening session to %s: %w", w.Name, err)
	}
	defer session.Close()
	return session.ListTools(callCtx)
}

func (d *Dispatcher) toolNames(ctx context.Context, w registry.Workload) (map[string]bool, error) {
	tools, err := d.ListTools(ctx, w)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(tools))
	for _, t := range tools {
		names[t.Name] = true
	}
	return names, nil
}

func isSuperset(set, subset map[string]bool) bool {
	for name := range subset {
		if !set[name] {
			return false
		}
	}
	return true
}
