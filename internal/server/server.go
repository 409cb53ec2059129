// Package server exposes the pipeline over HTTP: job CRUD and
// cancellation, progress streaming via Server-Sent Events, export and
// template management, and basic operational endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dataforge-ai/forge/internal/progress"
	"github.com/dataforge-ai/forge/internal/store"
	"github.com/dataforge-ai/forge/internal/templates"
)

// Server is the forge HTTP server. It owns no pipeline state of its
// own; everything it serves lives in the store, the template registry,
// or the progress bus.
type Server struct {
	httpServer *http.Server
	store      store.Store
	bus        *progress.Bus
	templates  *templates.Registry
	logger     *slog.Logger

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Store is the persistence layer; required.
	Store store.Store
	// Bus carries pipeline progress events for the SSE stream.
	Bus *progress.Bus
	// Templates is the generation template registry.
	Templates *templates.Registry
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		return nil, errors.New("server requires a store")
	}
	if cfg.Bus == nil {
		cfg.Bus = progress.NewBus(cfg.Logger)
	}
	if cfg.Templates == nil {
		cfg.Templates = templates.NewRegistry()
	}

	s := &Server{
		store:     cfg.Store,
		bus:       cfg.Bus,
		templates: cfg.Templates,
		logger:    cfg.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the SSE stream stays open for the lifetime
		// of a job run.
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or
// the listener fails, and shuts down gracefully on cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer s.setNotRunning()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
