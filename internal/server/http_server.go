// Package server constructs and starts the exchangechat HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/exchangechat/internal/audit"
	"github.com/Tyrowin/exchangechat/internal/exchange"
	"github.com/Tyrowin/exchangechat/internal/metrics"
)

// Deps are the collaborators a Server is built from. Logger and Metrics
// default to slog.Default and a fresh registry; Audit may be nil.
type Deps struct {
	Fetcher exchange.Fetcher
	Audit   audit.Log
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time
	Names   func() string
}

// Server owns the registry, the dispatcher and the HTTP listener.
type Server struct {
	cfg            Config
	hub            *Hub
	dispatcher     *Dispatcher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	clientSettings ClientSettings
	httpServer     *http.Server
}

// New builds a Server from cfg and deps. The listener is not started.
func New(cfg Config, deps Deps) (*Server, error) {
	cfg = sanitizeConfig(cfg)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	hub := NewHub(logger, m, WithNameGenerator(deps.Names))

	dispatcher, err := NewDispatcher(hub, deps.Fetcher, deps.Audit,
		WithLogger(logger),
		WithMetrics(m),
		WithClock(deps.Clock),
		WithArchiveConcurrency(cfg.Exchange.Concurrency),
		WithMaxLookbackDays(cfg.Exchange.MaxLookbackDays),
		WithAuditTimeout(cfg.Audit.Timeout),
	)
	if err != nil {
		return nil, err
	}

	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	s := &Server{
		cfg:        cfg,
		hub:        hub,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		clientSettings: ClientSettings{
			MaxMessageSize: cfg.MaxMessageSize,
			RateLimit:      cfg.RateLimit,
		},
	}
	s.httpServer = CreateServer(cfg.Port, s.Routes())
	return s, nil
}

// Hub returns the connection registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Dispatcher returns the line dispatcher.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// HTTPServer returns the underlying http.Server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Start listens and serves until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("Server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP listener, then closes every session and waits for
// them to finish. Both phases share timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, err)
	}

	remaining := time.Until(deadlineOf(ctx))
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if err := s.hub.Shutdown(remaining); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("Server shutdown completed")
	return nil
}

func deadlineOf(ctx context.Context) time.Time {
	deadline, ok := ctx.Deadline()
	if !ok {
		return time.Now()
	}
	return deadline
}
