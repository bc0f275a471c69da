// Package server defines the delivery contract shared by the hub, the
// dispatcher and every connection.
package server

import (
	"errors"
	"strings"
)

// Peer is anything the hub can deliver a broadcast payload to. Send must not
// retain or modify message after returning an error.
type Peer interface {
	Send(message []byte) error
}

// Broadcaster fans a text line out to every registered peer.
type Broadcaster interface {
	Broadcast(text string)
}

var (
	// ErrSendBufferFull is returned when a peer cannot keep up with the
	// broadcast rate. The peer closes its own connection when this happens.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrClientClosed is returned when delivering to a session that is closing.
	ErrClientClosed = errors.New("client closed")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
