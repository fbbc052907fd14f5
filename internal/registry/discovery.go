package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mcpshell/internal/config"
	"mcpshell/internal/telemetry"
)

const probeTimeout = 500 * time.Millisecond

// DiscoveryError is returned when the registry endpoint cannot be located.
// It is process-init-fatal unless the caller supplied a
// fallback (SkipScan, which returns Options.Host and Options.DefaultPort
// without probing).
type DiscoveryError struct {
	Reason string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery: %s", e.Reason)
}

// Options configures a single Discover call.
type Options struct {
	Host           string
	Port           int
	SkipScan       bool
	DefaultPort    int
	ScanRangeStart int
	ScanRangeEnd   int
}

// Discovery locates the local registry endpoint and caches it for the
// process lifetime after the first success (invariant 5).
type Discovery struct {
	mu     sync.Mutex
	cached *Endpoint
	http   *http.Client
	obs    *telemetry.Observability
}

// Endpoint is a discovered (host, port) pair.
type Endpoint struct {
	Host string
	Port int
}

// BaseURL formats the endpoint as an HTTP base URL.
func (e Endpoint) BaseURL() string { return fmt.Sprintf("http://%s:%d", e.Host, e.Port) }

// NewDiscovery constructs a Discovery. obs may be nil.
func NewDiscovery(obs *telemetry.Observability) *Discovery {
	if obs == nil {
		obs = telemetry.New(nil, nil, nil)
	}
	return &Discovery{http: &http.Client{Timeout: probeTimeout}, obs: obs}
}

// Discover resolves the registry (host, port), following the procedure in
// falling back from a direct probe to a ranged port scan.
func (d *Discovery) Discover(ctx context.Context, opts Options) (Endpoint, error) {
	d.mu.Lock()
	if d.cached != nil {
		ep := *d.cached
		d.mu.Unlock()
		return ep, nil
	}
	d.mu.Unlock()

	start := time.Now()
	ctx, span := d.obs.StartSpan(ctx, telemetry.Operation{Component: "discovery", Name: "discover"})
	defer span.End()

	ep, err := d.discover(ctx, opts)
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	d.obs.Record(ctx, telemetry.Event{
		Op:       telemetry.Operation{Component: "discovery", Name: "discover"},
		Duration: time.Since(start),
		Outcome:  outcome,
		Err:      err,
	})
	d.obs.EndSpan(span, outcome, err)
	if err != nil {
		return Endpoint{}, err
	}

	d.mu.Lock()
	d.cached = &ep
	d.mu.Unlock()
	return ep, nil
}

func (d *Discovery) discover(ctx context.Context, opts Options) (Endpoint, error) {
	host := opts.Host
	if host == "" {
		if env := os.Getenv(config.EnvRegistryHost); env != "" {
			host = env
		} else {
			host = "127.0.0.1"
		}
	}

	defaultPort := opts.DefaultPort
	if defaultPort == 0 {
		defaultPort = 8080
	}

	if opts.SkipScan {
		return Endpoint{Host: host, Port: defaultPort}, nil
	}

	if opts.Port != 0 {
		for attempt := 0; attempt < 3; attempt++ {
			if d.probe(ctx, host, opts.Port) {
				return Endpoint{Host: host, Port: opts.Port}, nil
			}
		}
		// Fall through to a full scan.
	}

	start, end := opts.ScanRangeStart, opts.ScanRangeEnd
	if start == 0 && end == 0 {
		start, end = 8000, 8100
	}
	numPorts := end - start
	if numPorts <= 0 {
		return Endpoint{}, &DiscoveryError{Reason: "empty scan range"}
	}

	budget := time.Duration(numPorts) * probeTimeout
	if budget > 30*time.Second {
		budget = 30 * time.Second
	}
	scanCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	candidates := candidateHosts(host)
	for _, candidateHost := range candidates {
		if port, ok := d.scanHost(scanCtx, candidateHost, start, end); ok {
			return Endpoint{Host: candidateHost, Port: port}, nil
		}
	}
	return Endpoint{}, &DiscoveryError{Reason: fmt.Sprintf("no registry found scanning ports %d-%d on %v", start, end, candidates)}
}

// candidateHosts returns the chosen host, loopback, and the conventional
// host-from-container alias, deduplicated in priority order.
func candidateHosts(chosen string) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range []string{chosen, "127.0.0.1", "host.docker.internal"} {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

// scanHost concurrently probes every port in [start, end) on host and
// returns the first responding port, if any.
func (d *Discovery) scanHost(ctx context.Context, host string, start, end int) (int, bool) {
	g, ctx := errgroup.WithContext(ctx)
	found := make(chan int, 1)

	for port := start; port < end; port++ {
		port := port
		g.Go(func() error {
			if d.probe(ctx, host, port) {
				select {
				case found <- port:
				default:
				}
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case port := <-found:
		return port, true
	case <-done:
		select {
		case port := <-found:
			return port, true
		default:
			return 0, false
		}
	case <-ctx.Done():
		return 0, false
	}
}

// probe issues a GET to host:port/version and reports whether the body
// deserializes to an object carrying a "version" field (fingerprinting the
// registry and distinguishing it from an arbitrary HTTP server).
func (d *Discovery) probe(ctx context.Context, host string, port int) bool {
	url := fmt.Sprintf("http://%s:%d/api/v1beta/version", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return false
	}
	return v.Version != ""
}
