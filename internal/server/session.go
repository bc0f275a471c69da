package server

// SessionState is the lifecycle stage of one connection.
type SessionState int32

const (
	// StateConnecting covers the time between upgrade and registration.
	StateConnecting SessionState = iota
	// StateActive sessions are registered and read lines.
	StateActive
	// StateClosing sessions are tearing down after a read error or shutdown.
	StateClosing
	// StateClosed sessions are unregistered with their connection closed.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
