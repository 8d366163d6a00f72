// Package api exposes a process registry over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/randomizedcoder/go-procsup/internal/process"
	"github.com/randomizedcoder/go-procsup/internal/supervisor"
)

// Supervisor is the registry surface served by the API.
type Supervisor interface {
	Launch(req supervisor.LaunchRequest) (*supervisor.LaunchResult, error)
	List() []supervisor.Status
	Get(id string) (supervisor.Status, error)
	Read(id string, lines int, clear bool) (*supervisor.ReadResult, error)
	Write(id, input string, newline bool) (*supervisor.WriteResult, error)
	CloseInput(id string) error
	Kill(id string, sig process.Signal, remove bool) (*supervisor.KillResult, error)
	Cleanup(killAll bool) *supervisor.CleanupResult
}

// Config holds API server configuration.
type Config struct {
	Listen     string
	InstanceID string
	Version    string

	// WriteTimeout must cover a launch grace period plus a kill settle.
	WriteTimeout time.Duration
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	sup       Supervisor
	logger    *slog.Logger
	startedAt time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server.
func New(config Config, sup Supervisor, logger *slog.Logger) *Server {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 30 * time.Second
	}
	return &Server{
		config:    config,
		sup:       sup,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start binds the listen address and serves until ctx is cancelled, then
// shuts down gracefully. Bind and serve errors are returned.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.config.Listen, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("api_server_starting", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Debug("api_server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("api server error: %w", err)
	}
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Listen
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/processes", s.handleLaunch)
		r.Get("/processes", s.handleList)
		r.Get("/processes/{id}", s.handleStatus)
		r.Get("/processes/{id}/output", s.handleRead)
		r.Post("/processes/{id}/input", s.handleWrite)
		r.Delete("/processes/{id}/input", s.handleCloseInput)
		r.Post("/processes/{id}/kill", s.handleKill)
		r.Post("/cleanup", s.handleCleanup)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
