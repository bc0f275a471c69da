// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	sendBufferSize = 256
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 54 * time.Second
)

// LineHandler processes one inbound line from the named sender.
type LineHandler interface {
	Handle(ctx context.Context, sender, line string)
}

// ClientSettings are the per-connection limits.
type ClientSettings struct {
	MaxMessageSize int64
	RateLimit      RateLimitConfig
}

// Client represents a WebSocket client connection in the chat system.
// It owns the connection, the outbound queue and the session state.
type Client struct {
	id             uuid.UUID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	handler        LineHandler
	addr           string
	name           string
	mu             sync.Mutex
	closed         bool
	state          SessionState
	maxMessageSize int64
	rateLimiter    *rate.Limiter
	rateLimit      RateLimitConfig
	logger         *slog.Logger
}

// NewClient creates a new Client in the connecting state. The send channel
// is buffered so that a slow reader does not stall broadcasts.
func NewClient(conn *websocket.Conn, hub *Hub, handler LineHandler, addr string, settings ClientSettings, logger *slog.Logger) *Client {
	if conn != nil && settings.MaxMessageSize > 0 {
		conn.SetReadLimit(settings.MaxMessageSize)
	}
	id := uuid.New()

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		hub:            hub,
		handler:        handler,
		addr:           addr,
		state:          StateConnecting,
		maxMessageSize: settings.MaxMessageSize,
		rateLimiter:    newRateLimiter(settings.RateLimit.Burst, settings.RateLimit.RefillInterval),
		rateLimit:      settings.RateLimit,
		logger:         logger.With("client_id", id.String(), "addr", addr),
	}
}

// ID returns the connection identifier used in logs.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Name returns the display name assigned at registration.
func (c *Client) Name() string {
	return c.name
}

// State returns the current session state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(state SessionState) {
	c.mu.Lock()
	prev := c.state
	c.state = state
	c.mu.Unlock()

	c.logger.Debug("Session state changed", "from", prev.String(), "to", state.String())
}

// Send queues message for the write pump without blocking. A full queue
// means the reader cannot keep up; the connection is closed so the session
// tears itself down.
func (c *Client) Send(message []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}

	select {
	case c.send <- message:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	c.logger.Warn("Send buffer full; closing connection", "capacity", sendBufferSize)
	c.closeConnection()
	return ErrSendBufferFull
}

// Close sends a going-away close frame and closes the connection. The
// session's read loop then fails and cleans up.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("Error writing close frame", "error", err)
	}
	return c.conn.Close()
}

// start registers the client and launches its pumps. If the hub is already
// shutting down the connection is closed instead.
func (c *Client) start() {
	if c.hub.Closed() {
		c.closeConnection()
		c.setState(StateClosed)
		return
	}

	c.name = c.hub.Register(c)
	c.setState(StateActive)

	if !c.hub.spawn(c.writePump) {
		c.teardown()
		return
	}
	if !c.hub.spawn(c.readPump) {
		c.teardown()
	}
}

// teardown moves the session through closing to closed. It runs on every
// exit path of the read loop and is safe to call more than once.
func (c *Client) teardown() {
	c.setState(StateClosing)
	c.hub.Unregister(c)

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	c.closeConnection()
	c.setState(StateClosed)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		c.logger.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			c.logger.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the reason the read loop is ending.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn("Unexpected WebSocket error", "error", err)
	default:
		c.logger.Warn("WebSocket read error", "error", err)
	}
}

// checkRateLimit reports whether the next message may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		c.logger.Warn("Rate limit exceeded; discarding message",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage hands one line to the handler. A panic is logged and the
// session keeps reading.
func (c *Client) processMessage(ctx context.Context, line string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic while handling message", "panic", r)
		}
	}()

	c.handler.Handle(ctx, c.name, line)
}

func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(c.hub.Context())
	defer func() {
		cancel()
		c.teardown()
	}()

	c.setupReadConnection()

	for {
		messageType, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Debug("Ignoring non-text frame", "type", messageType)
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(ctx, string(rawMessage))
		c.extendReadDeadline()
	}
}

// extendReadDeadline restarts the read timeout once a line has been handled.
// Pongs are only processed inside ReadMessage, so a slow exchange fetch would
// otherwise let the deadline lapse under a live peer.
func (c *Client) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		c.logger.Warn("Error extending read deadline", "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("Error closing connection", "error", err)
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("Error writing close message", "error", err)
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
