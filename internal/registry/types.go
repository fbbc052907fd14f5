// Package registry resolves the local workload registry daemon (discovery)
// and queries it for the workload fleet. Filtering out the orchestrator's
// own process is done by the dispatch package, not here.
package registry

// Workload is a remote tool-hosting process registered with the local
// registry daemon.
type Workload struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	URL           string `json:"url"`
	TransportType string `json:"transport_type"`
	ProxyMode     string `json:"proxy_mode"`
}

// Running reports whether the workload is currently serving requests.
func (w Workload) Running() bool {
	return w.Status == StatusRunning
}

// Status values reported by the registry. Only StatusRunning is treated
// specially; any other value is surfaced to callers as-is.
const StatusRunning = "running"

// versionResponse is the body of GET {base}/api/v1beta/version. Only the
// presence of the "version" field matters; it is what fingerprints a
// candidate port as the registry rather than an arbitrary HTTP server.
type versionResponse struct {
	Version string `json:"version"`
}

// workloadsResponse is the body of GET {base}/api/v1beta/workloads.
type workloadsResponse struct {
	Workloads []Workload `json:"workloads"`
}
