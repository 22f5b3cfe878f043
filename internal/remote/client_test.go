package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"clinic-sync-service/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.RemoteConfig{
		BaseURL:   srv.URL,
		AuthToken: token,
		Timeout:   "5s",
	})
}

func TestGetUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/patients", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"p-1"}]}`))
	}, "")

	resp, err := c.Get(context.Background(), "/patients")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"p-1"}]`, string(resp.Data))
}

func TestGetToleratesBarePayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"p-1"}]`))
	}, "")

	resp, err := c.Get(context.Background(), "/patients")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"p-1"}]`, string(resp.Data))
}

func TestPostSendsJSONBodyAndAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Ada"}`, string(body))

		w.Write([]byte(`{"data":{"id":"p-1","name":"Ada"}}`))
	}, "secret")

	resp, err := c.Post(context.Background(), "patients", json.RawMessage(`{"name":"Ada"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"p-1","name":"Ada"}`, string(resp.Data))
}

func TestNonSuccessStatusIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, "")

	_, err := c.Get(context.Background(), "/patients")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestDeleteEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}, "")

	resp, err := c.Delete(context.Background(), "/patients/p-1")
	require.NoError(t, err)
	require.Empty(t, resp.Data)
}
