package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcpshell/internal/telemetry"
)

// ErrWorkloadNotFound is returned by Client.GetWorkload when no workload with the
// given name is registered.
var ErrWorkloadNotFound = errors.New("workload not found")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the *http.Client used for registry requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObservability wires logging, metrics, and tracing into the client.
func WithObservability(obs *telemetry.Observability) Option {
	return func(c *Client) { c.obs = obs }
}

// WithInContainer overrides the in-container detection used for the
// loopback URL rewrite (invariant 6). Tests use this to exercise the
// rewrite without an environment variable.
func WithInContainer(v bool) Option {
	return func(c *Client) { c.inContainer = &v }
}

// Client queries the local registry daemon for the workload fleet. It never
// retries; a transport error is returned to the caller as-is.
type Client struct {
	http        *http.Client
	obs         *telemetry.Observability
	inContainer *bool
}

// NewClient constructs a Client. The registry base URL ("http://host:port")
// is passed to each call rather than bound at construction.
func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	if c.obs == nil {
		c.obs = telemetry.New(nil, nil, nil)
	}
	return c
}

// ListWorkloads fetches the full workload fleet from the registry at base
// and applies the in-container loopback URL rewrite (invariant 6).
func (c *Client) ListWorkloads(ctx context.Context, base string) ([]Workload, error) {
	start := time.Now()
	ctx, span := c.obs.StartSpan(ctx, telemetry.Operation{Component: "registry", Name: "list_workloads"})
	defer span.End()

	workloads, err := c.fetchWorkloads(ctx, base)
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	c.obs.Record(ctx, telemetry.Event{
		Op:       telemetry.Operation{Component: "registry", Name: "list_workloads"},
		Duration: time.Since(start),
		Outcome:  outcome,
		Err:      err,
	})
	if err != nil {
		c.obs.EndSpan(span, outcome, err)
		return nil, err
	}
	c.obs.EndSpan(span, outcome, nil)

	if c.inContainerNow() {
		rewriteLoopback(workloads, hostOf(base))
	}
	return workloads, nil
}

// GetWorkload fetches a single workload by name, applying the same rewrite
// as ListWorkloads. Returns ErrWorkloadNotFound if absent.
func (c *Client) GetWorkload(ctx context.Context, base, name string) (Workload, error) {
	workloads, err := c.ListWorkloads(ctx, base)
	if err != nil {
		return Workload{}, err
	}
	for _, w := range workloads {
		if w.Name == name {
			return w, nil
		}
	}
	return Workload{}, fmt.Errorf("%w: %s", ErrWorkloadNotFound, name)
}

func (c *Client) fetchWorkloads(ctx context.Context, base string) ([]Workload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/api/v1beta/workloads", nil)
	if err != nil {
		return nil, fmt.Errorf("building workloads request: %w", err)
	}
	// Request uncacheable responses: the registry's view of running
	// workloads changes between calls and every stage that touches it
	// re-fetches.
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing workloads from %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing workloads from %s: unexpected status %d", base, resp.StatusCode)
	}

	var body workloadsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding workloads response from %s: %w", base, err)
	}
	return body.Workloads, nil
}

func (c *Client) inContainerNow() bool {
	if c.inContainer != nil {
		return *c.inContainer
	}
	return inContainerEnv()
}

func hostOf(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// rewriteLoopback rewrites workload URLs whose host is a loopback literal
// to the registry's own discovered host, but only when called from a
// container context (invariant 6: never otherwise).
func rewriteLoopback(workloads []Workload, registryHost string) {
	if registryHost == "" || isLoopback(registryHost) {
		return
	}
	for i, w := range workloads {
		u, err := url.Parse(w.URL)
		if err != nil || !isLoopback(u.Hostname()) {
			continue
		}
		workloads[i].URL = strings.Replace(w.URL, u.Hostname(), registryHost, 1)
	}
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
