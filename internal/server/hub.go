// Package server coordinates connection registration, display names, and
// message broadcast for the exchangechat WebSocket relay via the Hub type.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Tyrowin/exchangechat/internal/metrics"
)

const maxNameAttempts = 8

// Hub is the registry of live connections. Every registered peer has exactly
// one display name and no two live peers share a name. All methods are safe
// for concurrent use.
type Hub struct {
	peers   map[Peer]string
	names   map[string]struct{}
	mutex   sync.RWMutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	nameGen func() string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithNameGenerator replaces the random display name source.
func WithNameGenerator(gen func() string) HubOption {
	return func(h *Hub) {
		if gen != nil {
			h.nameGen = gen
		}
	}
}

// NewHub creates an empty registry. A nil metrics gets a private instance.
func NewHub(logger *slog.Logger, m *metrics.Metrics, opts ...HubOption) *Hub {
	if m == nil {
		m = metrics.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		peers:   make(map[Peer]string),
		names:   make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		nameGen: gofakeit.Name,
		metrics: m,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Context is cancelled when the hub starts shutting down.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Closed reports whether Shutdown has been called.
func (h *Hub) Closed() bool {
	return h.ctx.Err() != nil
}

// Register adds p under a fresh display name and returns it. Registering a
// peer twice returns its existing name.
func (h *Hub) Register(p Peer) string {
	h.mutex.Lock()
	if name, ok := h.peers[p]; ok {
		h.mutex.Unlock()
		return name
	}

	name := h.uniqueNameLocked()
	h.peers[p] = name
	h.names[name] = struct{}{}
	clientCount := len(h.peers)
	h.mutex.Unlock()

	h.metrics.ClientConnected()
	h.logger.Info("Client registered", "name", name, "clients", clientCount)
	return name
}

func (h *Hub) uniqueNameLocked() string {
	var name string
	for range maxNameAttempts {
		name = h.nameGen()
		if _, taken := h.names[name]; !taken {
			return name
		}
	}

	// The generator keeps colliding; disambiguate the last candidate.
	for i := 2; ; i++ {
		candidate := name + " " + strconv.Itoa(i)
		if _, taken := h.names[candidate]; !taken {
			return candidate
		}
	}
}

// Unregister removes p. Removing an unknown peer is a no-op.
func (h *Hub) Unregister(p Peer) {
	h.mutex.Lock()
	name, ok := h.peers[p]
	if !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.peers, p)
	delete(h.names, name)
	clientCount := len(h.peers)
	h.mutex.Unlock()

	h.metrics.ClientDisconnected()
	h.logger.Info("Client unregistered", "name", name, "clients", clientCount)
}

// Name returns the display name of p.
func (h *Hub) Name(p Peer) (string, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	name, ok := h.peers[p]
	return name, ok
}

// Len returns the number of registered peers.
func (h *Hub) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.peers)
}

// Snapshot returns the peers registered at the time of the call.
func (h *Hub) Snapshot() []Peer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	peers := make([]Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	return peers
}

// Broadcast delivers text to every peer in a snapshot of the registry, the
// sender included. A failing peer is logged and skipped; it is never
// unregistered here.
func (h *Hub) Broadcast(text string) {
	peers := h.Snapshot()
	if len(peers) == 0 {
		return
	}

	payload := []byte(text)
	failures := 0
	for _, p := range peers {
		if err := h.safeSend(p, payload); err != nil {
			failures++
			h.logger.Debug("Broadcast delivery failed", "peer", h.describe(p), "error", err)
		}
	}

	h.metrics.RecordBroadcast(failures)
}

func (h *Hub) safeSend(p Peer, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic in send: %v", r)
		}
	}()

	return p.Send(payload)
}

func (h *Hub) describe(p Peer) string {
	if name, ok := h.Name(p); ok {
		return name
	}
	return "unregistered"
}

// spawn runs fn on a goroutine that Shutdown waits for. It returns false
// once shutdown has begun.
func (h *Hub) spawn(fn func()) bool {
	h.mutex.Lock()
	if h.ctx.Err() != nil {
		h.mutex.Unlock()
		return false
	}
	h.wg.Add(1)
	h.mutex.Unlock()

	go func() {
		defer h.wg.Done()
		fn()
	}()
	return true
}

// closeAll closes every registered peer that owns a connection.
func (h *Hub) closeAll() int {
	closed := 0
	for _, p := range h.Snapshot() {
		c, ok := p.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("Error closing client connection", "peer", h.describe(p), "error", err)
		}
		closed++
	}
	return closed
}

// Shutdown stops accepting sessions, closes every connection and waits for
// all session goroutines to finish, or for the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Initiating hub shutdown")

	h.mutex.Lock()
	h.cancel()
	h.mutex.Unlock()

	closed := h.closeAll()
	h.logger.Info("Closed client connections", "count", closed)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
