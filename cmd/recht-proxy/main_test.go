package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/recht-proxy/internal/testutil"
	"github.com/Sternrassler/recht-proxy/pkg/cache"
	"github.com/Sternrassler/recht-proxy/pkg/lookup"
	"github.com/Sternrassler/recht-proxy/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	runner *testutil.MockRunner
}

func newTestServer(t *testing.T, ready ReadyFunc, limit ratelimit.Config) *testServer {
	t.Helper()

	store, err := cache.New[lookup.Payload](cache.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	runner := testutil.NewMockRunner()
	svc, err := lookup.NewService(store, runner, zerolog.Nop())
	require.NoError(t, err)

	limiter, err := ratelimit.NewTracker(limit, zerolog.Nop())
	require.NoError(t, err)

	publicDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(publicDir, "index.html"), []byte("<h1>recht</h1>"), 0o644))

	srv := httptest.NewServer(newHandler(handlerDeps{
		Lookup:    svc,
		Ready:     ready,
		Limiter:   limiter,
		PublicDir: publicDir,
		Logger:    zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, runner: runner}
}

func (s *testServer) getMap(t *testing.T, q string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(s.URL + "/map?q=" + url.QueryEscape(q))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestMapEndpoint_Success(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})
	srv.runner.SetResponse([]string{"get", "BGB", "1"},
		testutil.NewFoundResponse("https://example.test/bgb/1", "§ 1 BGB\nAbs. 1"))

	resp, body := srv.getMap(t, " bgb 001 ")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "https://example.test/bgb/1", body["url"])
	assert.Equal(t, "§ 1 BGB\nAbs. 1", body["text"])
}

func TestMapEndpoint_NullURL(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})
	srv.runner.SetDefault(testutil.NewTextResponse("§ 1 GG"))

	resp, body := srv.getMap(t, "GG 1")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "url")
	assert.Nil(t, body["url"])
	assert.Equal(t, "§ 1 GG", body["text"])
}

func TestMapEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		response    *testutil.MockResponse
		wantStatus  int
		wantMessage string
	}{
		{"missing q", "", nil, http.StatusBadRequest, lookup.MessageMissingQuery},
		{"invalid q", "BGB foo", nil, http.StatusBadRequest, lookup.MessageInvalidQuery},
		{"binary missing", "BGB 1", ptr(testutil.NewBinaryMissingResponse()), http.StatusInternalServerError, lookup.MessageBinaryMissing},
		{"timeout", "BGB 1", ptr(testutil.NewTimeoutResponse()), http.StatusGatewayTimeout, lookup.MessageTimeout},
		{"tool failure", "BGB 1", ptr(testutil.NewFailedResponse(1, "nicht gefunden")), http.StatusInternalServerError, lookup.MessageLookupFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil, ratelimit.Config{})
			if tt.response != nil {
				srv.runner.SetDefault(*tt.response)
			}

			resp, body := srv.getMap(t, tt.query)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMessage, body["error"])
		})
	}
}

func TestMapEndpoint_CachedFailure(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})
	srv.runner.SetDefault(testutil.NewBinaryMissingResponse())

	srv.getMap(t, "BGB 1")
	resp, body := srv.getMap(t, "BGB 1")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, lookup.MessageBinaryMissing, body["error"])
	assert.Equal(t, 1, srv.runner.GetCallCount())
}

func TestMapEndpoint_RateLimited(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{RPS: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		resp, _ := srv.getMap(t, "BGB 1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := srv.getMap(t, "BGB 1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, MessageRateLimited, body["error"])
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestMapEndpoint_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})

	resp, err := http.Post(srv.URL+"/map?q=BGB+1", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Zero(t, srv.runner.GetCallCount())
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newTestServer(t, func() error { return nil }, ratelimit.Config{})

		resp, err := http.Get(srv.URL + "/ready")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("binary missing", func(t *testing.T) {
		srv := newTestServer(t, func() error { return errors.New("not in PATH") }, ratelimit.Config{})

		resp, err := http.Get(srv.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), lookup.MessageBinaryMissing)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})
	srv.getMap(t, "BGB 1")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "recht_lookups_total")
	assert.Contains(t, string(body), `recht_http_requests_total{route="/map"`)
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "<h1>recht</h1>"))
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, nil, ratelimit.Config{})

	t.Run("generated", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Len(t, resp.Header.Get(requestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
		req.Header.Set(requestIDHeader, "req-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "req-123", resp.Header.Get(requestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }),
		RequestID(),
		Recovery(zerolog.Nop()),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/map", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mark("outer"), mark("inner"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/map", nil)

	req.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", clientIP(req))
}

func ptr[T any](v T) *T {
	return &v
}
