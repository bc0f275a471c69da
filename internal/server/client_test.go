package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/exchangechat/internal/exchange"
	"github.com/Tyrowin/exchangechat/internal/logger"
)

func newDetachedClient(hub *Hub) *Client {
	return NewClient(nil, hub, nil, "127.0.0.1:5555", ClientSettings{
		MaxMessageSize: 512,
		RateLimit:      RateLimitConfig{Burst: 2, RefillInterval: time.Minute},
	}, logger.Discard())
}

func TestNewClientStartsConnecting(t *testing.T) {
	hub, _ := newTestHub()
	c := newDetachedClient(hub)

	assert.Equal(t, StateConnecting, c.State())
	assert.NotEqual(t, uuid.Nil, c.ID())
	assert.Equal(t, 0, hub.Len())
}

func TestClientSendQueuesMessages(t *testing.T) {
	hub, _ := newTestHub()
	c := newDetachedClient(hub)

	require.NoError(t, c.Send([]byte("first")))
	require.NoError(t, c.Send([]byte("second")))

	assert.Equal(t, "first", string(<-c.send))
	assert.Equal(t, "second", string(<-c.send))
}

// TestClientSendBufferFull verifies that a slow consumer gets an error
// instead of blocking the broadcaster.
func TestClientSendBufferFull(t *testing.T) {
	hub, _ := newTestHub()
	c := newDetachedClient(hub)

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send([]byte("fill")))
	}

	assert.ErrorIs(t, c.Send([]byte("overflow")), ErrSendBufferFull)
}

func TestClientTeardown(t *testing.T) {
	hub, _ := newTestHub()
	c := newDetachedClient(hub)
	c.name = hub.Register(c)
	c.setState(StateActive)

	c.teardown()
	c.teardown()

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, hub.Len())
	assert.ErrorIs(t, c.Send([]byte("late")), ErrClientClosed)

	_, open := <-c.send
	assert.False(t, open)
}

func TestClientStartAfterShutdown(t *testing.T) {
	hub, _ := newTestHub()
	require.NoError(t, hub.Shutdown(time.Second))

	c := newDetachedClient(hub)
	c.start()

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, hub.Len())
}

func TestClientRateLimit(t *testing.T) {
	hub, _ := newTestHub()
	c := newDetachedClient(hub)

	assert.True(t, c.checkRateLimit())
	assert.True(t, c.checkRateLimit())
	assert.False(t, c.checkRateLimit())
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestProcessMessageRecoversPanic(t *testing.T) {
	hub, _ := newTestHub()
	c := newDetachedClient(hub)
	c.handler = panickingHandler{}

	assert.NotPanics(t, func() {
		c.processMessage(t.Context(), "boom")
	})
}

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, string, string) {
	panic("handler exploded")
}

type slowFetcher struct {
	fakeFetcher
	delay time.Duration
}

func (f *slowFetcher) Current(ctx context.Context) ([]exchange.CurrentRate, error) {
	time.Sleep(f.delay)
	return f.fakeFetcher.Current(ctx)
}

// TestClientSurvivesSlowExchange verifies that a fetch outlasting the read
// deadline does not end the session of a peer that is still connected.
func TestClientSurvivesSlowExchange(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	s, err := New(*cfg, Deps{
		Fetcher: &slowFetcher{delay: 600 * time.Millisecond},
		Audit:   &fakeAudit{},
		Logger:  logger.Discard(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Routes())
	defer ts.Close()
	defer func() { _ = s.Hub().Shutdown(time.Second) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)
	client := s.Hub().Snapshot()[0].(*Client)

	// One round trip so the read loop has installed its own deadline.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	// The deadline lapses while the fetch is still running.
	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("exchange")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for _, prefix := range []string{": exchange", "Reply from PrivatBank to ", "[]"} {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), prefix)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("still here")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), ": still here"))

	assert.Equal(t, 1, s.Hub().Len())
	assert.Equal(t, StateActive, client.State())
}
