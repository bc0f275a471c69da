// Package testhelpers provides common utilities for the exchangechat
// integration tests: in-process servers, a fake rate provider and WebSocket
// helpers for the plain text wire format.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/exchangechat/internal/exchange"
	"github.com/Tyrowin/exchangechat/internal/logger"
	"github.com/Tyrowin/exchangechat/internal/metrics"
	"github.com/Tyrowin/exchangechat/internal/server"
)

// DefaultTimeout bounds every blocking read in the helpers.
const DefaultTimeout = 3 * time.Second

// ChatServer is a running exchangechat server backed by httptest.
type ChatServer struct {
	*server.Server
	HTTP    *httptest.Server
	Metrics *metrics.Metrics
	WSURL   string
}

// StartChatServer starts a server whose allow-list contains its own URL.
// Logger and Metrics in deps are filled in when nil; customize may adjust
// the config before the server is built.
func StartChatServer(t *testing.T, deps server.Deps, customize func(cfg *server.Config)) *ChatServer {
	t.Helper()

	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	// The allow-list must name the httptest URL, which is only known once
	// the listener exists, so the handler is installed after start.
	var handler atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Load().(http.Handler).ServeHTTP(w, r)
	}))
	cfg.AllowedOrigins = append([]string{ts.URL}, cfg.AllowedOrigins...)

	srv, err := server.New(*cfg, deps)
	require.NoError(t, err)
	handler.Store(http.Handler(srv.Routes()))

	t.Cleanup(func() {
		_ = srv.Hub().Shutdown(DefaultTimeout)
		ts.Close()
	})

	return &ChatServer{
		Server:  srv,
		HTTP:    ts,
		Metrics: deps.Metrics,
		WSURL:   "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// Connect dials the chat server with its own URL as Origin and waits until
// the hub has registered wantClients connections.
func (s *ChatServer) Connect(t *testing.T, wantClients int) *websocket.Conn {
	t.Helper()

	conn, err := ConnectWebSocket(s.WSURL, s.HTTP.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	WaitForClients(t, s.Hub(), wantClients)
	return conn
}

// WaitForClients polls the hub until it holds n connections.
func WaitForClients(t *testing.T, hub *server.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Len() == n
	}, DefaultTimeout, 5*time.Millisecond, "expected %d registered clients", n)
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendText sends one line as a text frame.
func SendText(conn *websocket.Conn, line string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// ReadText reads the next text frame.
func ReadText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	return string(data)
}

// ReadTexts reads exactly n text frames.
func ReadTexts(t *testing.T, conn *websocket.Conn, n int) []string {
	t.Helper()

	out := make([]string, 0, n)
	for range n {
		out = append(out, ReadText(t, conn))
	}
	return out
}

// ExpectNoMessage fails if a frame arrives within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", data)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// FakePrivatBank serves the two PrivatBank endpoints from fixed data.
// Dates listed in FailDates answer 503.
type FakePrivatBank struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []string
	failDates map[string]bool
}

// NewFakePrivatBank starts the fake provider.
func NewFakePrivatBank(t *testing.T, failDates ...string) *FakePrivatBank {
	t.Helper()

	f := &FakePrivatBank{failDates: make(map[string]bool)}
	for _, d := range failDates {
		f.failDates[d] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/pubinfo", f.handleCurrent)
	mux.HandleFunc("/exchange_rates", f.handleArchive)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Fetcher returns a PrivatBank client pointed at the fake without retries.
func (f *FakePrivatBank) Fetcher() *exchange.PrivatBank {
	return exchange.NewPrivatBank(exchange.Config{
		BaseURL:       f.URL,
		HTTPTimeout:   time.Second,
		RetryInterval: time.Millisecond,
	}, logger.Discard())
}

// Requests returns the request URIs seen so far.
func (f *FakePrivatBank) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakePrivatBank) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.URL.RequestURI())
}

func (f *FakePrivatBank) handleCurrent(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	writeJSON(w, []map[string]string{
		{"ccy": "EUR", "base_ccy": "UAH", "buy": "44.50000", "sale": "45.20000"},
		{"ccy": "USD", "base_ccy": "UAH", "buy": "41.20000", "sale": "41.80000"},
	})
}

func (f *FakePrivatBank) handleArchive(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	date := r.URL.Query().Get("date")

	f.mu.Lock()
	fail := f.failDates[date]
	f.mu.Unlock()
	if fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]any{
		"date":            date,
		"bank":            "PB",
		"baseCurrency":    980,
		"baseCurrencyLit": "UAH",
		"exchangeRate": []map[string]any{
			{"baseCurrency": "UAH", "currency": "EUR", "saleRateNB": 44.1, "purchaseRateNB": 44.1, "saleRate": 45.2, "purchaseRate": 44.5},
			{"baseCurrency": "UAH", "currency": "USD", "saleRateNB": 41.3, "purchaseRateNB": 41.3, "saleRate": 41.8, "purchaseRate": 41.2},
			{"baseCurrency": "UAH", "currency": "PLZ", "saleRateNB": 10.4, "purchaseRateNB": 10.4},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
