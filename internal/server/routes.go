// Package server wires HTTP handlers into a ServeMux for the exchangechat
// application via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application routes:
// the health check, the WebSocket endpoint and the Prometheus metrics.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}
