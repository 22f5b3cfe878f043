package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clinic-sync-service/internal/config"
	"clinic-sync-service/internal/connectivity"
	"clinic-sync-service/internal/facade"
	"clinic-sync-service/internal/remote"
	"clinic-sync-service/internal/store"
	"clinic-sync-service/internal/sync"
)

// offlineRemote rejects every call; the fixtures run with the monitor
// offline so nothing should reach it anyway.
type offlineRemote struct{}

func (offlineRemote) Get(ctx context.Context, path string) (*remote.Response, error) {
	return nil, errors.New("offline")
}

func (offlineRemote) Post(ctx context.Context, path string, body any) (*remote.Response, error) {
	return nil, errors.New("offline")
}

func (offlineRemote) Put(ctx context.Context, path string, body any) (*remote.Response, error) {
	return nil, errors.New("offline")
}

func (offlineRemote) Delete(ctx context.Context, path string) (*remote.Response, error) {
	return nil, errors.New("offline")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(config.StorageConfig{
		FilePath:   filepath.Join(t.TempDir(), "api.db"),
		Partitions: []string{"patients"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mon := connectivity.NewManual(false)
	queue := sync.NewManager(config.SyncConfig{FlushInterval: "1h"}, st, offlineRemote{}, mon)
	svc := facade.New(st, offlineRemote{}, mon, queue)

	handler := NewHandler(svc, queue, config.ServerConfig{AuthToken: "secret"})
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]bool
	decodeBody(t, resp, &status)
	require.False(t, status["online"])
}

func TestSaveAndReadBackOffline(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/data/patients", `{"name":"Ada"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	decodeBody(t, resp, &doc)
	require.Equal(t, true, doc["_offline"])

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/sync/pending", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending map[string]int
	decodeBody(t, resp, &pending)
	require.Equal(t, 1, pending["pending"])

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/data/patients", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []json.RawMessage
	decodeBody(t, resp, &records)
	require.Len(t, records, 1)
}

func TestUnknownPartitionIs404(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/data/invoices", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveRejectsBadMethodParam(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/data/patients?method=PATCH", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncStatus(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/sync/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	decodeBody(t, resp, &status)
	require.Equal(t, "idle", status["status"])
	require.Equal(t, false, status["online"])
	require.Equal(t, float64(0), status["pending"])
}
