package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpshell/internal/mcpsession"
	"mcpshell/internal/registry"
)

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

func TestIsSuperset(t *testing.T) {
	assert.True(t, isSuperset(map[string]bool{"a": true, "b": true}, map[string]bool{"a": true}))
	assert.False(t, isSuperset(map[string]bool{"a": true}, map[string]bool{"a": true, "b": true}))
	assert.True(t, isSuperset(map[string]bool{"a": true}, map[string]bool{}))
}

func TestDispatchError_Format(t *testing.T) {
	err := newDispatchError(mcpsession.ErrWorkloadNotRunning, "docs")
	assert.Equal(t, "workload_not_running: docs", err.Error())
}

func TestOpen_RegistryBaseErrorPropagates(t *testing.T) {
	wantErr := errors.New("discovery failed")
	d := New(func(context.Context) (string, error) { return "", wantErr }, registry.NewClient(), 0, nil)
	_, err := d.Open(context.Background(), "docs")
	assert.ErrorIs(t, err, wantErr)
}

func TestOpen_WorkloadNotFound(t *testing.T) {
	srv := newFakeRegistry(t, nil)
	d := New(baseFunc(srv.URL), registry.NewClient(), 0, nil)
	_, err := d.Open(context.Background(), "docs")
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "docs", dispatchErr.Server)
}

func TestOpen_WorkloadNotRunning(t *testing.T) {
	srv := newFakeRegistry(t, []registry.Workload{{Name: "docs", Status: "stopped", URL: "http://127.0.0.1:1"}})
	d := New(baseFunc(srv.URL), registry.NewClient(), 0, nil)
	_, err := d.Open(context.Background(), "docs")
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, mcpsession.ErrWorkloadNotRunning.Error(), dispatchErr.Reason)
}

func TestOpen_NoURL(t *testing.T) {
	srv := newFakeRegistry(t, []registry.Workload{{Name: "docs", Status: registry.StatusRunning, URL: ""}})
	d := New(baseFunc(srv.URL), registry.NewClient(), 0, nil)
	_, err := d.Open(context.Background(), "docs")
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, mcpsession.ErrNoURL.Error(), dispatchErr.Reason)
}

func TestOpen_UnsupportedTransport(t *testing.T) {
	srv := newFakeRegistry(t, []registry.Workload{{
		Name: "docs", Status: registry.StatusRunning, URL: "http://127.0.0.1:1", ProxyMode: "websocket",
	}})
	d := New(baseFunc(srv.URL), registry.NewClient(), 0, nil)
	_, err := d.Open(context.Background(), "docs")
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, mcpsession.ErrUnsupportedTransport.Error(), dispatchErr.Reason)
}

func TestListWorkloads_DropsStoppedWorkloads(t *testing.T) {
	srv := newFakeRegistry(t, []registry.Workload{
		{Name: "docs", Status: "stopped", URL: "http://127.0.0.1:1"},
	})
	d := New(baseFunc(srv.URL), registry.NewClient(), 0, nil)
	out, err := d.ListWorkloads(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListWorkloads_KeepsWorkloadItCannotIntrospect(t *testing.T) {
	srv := newFakeRegistry(t, []registry.Workload{
		{Name: "docs", Status: registry.StatusRunning, URL: "http://127.0.0.1:1", ProxyMode: "sse"},
	})
	d := New(baseFunc(srv.URL), registry.NewClient(), 0, nil)
	out, err := d.ListWorkloads(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1, "introspection failure never drops a workload defensively")
	assert.Equal(t, "docs", out[0].Name)
}

func TestListWorkloads_RegistryErrorPropagates(t *testing.T) {
	d := New(baseFunc("http://127.0.0.1:1"), registry.NewClient(), 0, nil)
	_, err := d.ListWorkloads(context.Background())
	assert.Error(t, err)
}
