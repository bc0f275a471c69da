package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/exchangechat/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := NewConfig()
	s, err := New(*cfg, Deps{
		Fetcher: &fakeFetcher{},
		Audit:   &fakeAudit{},
		Logger:  logger.Discard(),
	})
	require.NoError(t, err)
	return s
}

// TestHealthHandler verifies the health endpoint responds to any method.
func TestHealthHandler(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			HealthHandler(rr, httptest.NewRequest(method, "/", http.NoBody))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "ExchangeChat server is running!", rr.Body.String())
			assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
		})
	}
}

func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.WebSocketHandler(rr, httptest.NewRequest(method, "/ws", http.NoBody))

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Contains(t, rr.Body.String(), "only accepts GET")
		})
	}
}

func TestWebSocketHandlerRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.WebSocketHandler(rr, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, s.Hub().Len())
}

func TestWebSocketHandlerAfterShutdown(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Hub().Shutdown(time.Second))

	rr := httptest.NewRecorder()
	s.WebSocketHandler(rr, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ExchangeChat server is running!", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "exchangechat_connected_clients")
}
