// Package server exposes the tutor commands over HTTP and WebSocket for
// browser front ends. Every route goes through the same Dispatcher the
// stdin worker uses.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/codetutor/internal/config"
	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/protocol"
)

// Dispatcher answers decoded requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req protocol.Request) (map[string]any, error)
	Handle(ctx context.Context, req protocol.Request) any
}

// Server is the HTTP server for the tutor web API.
type Server struct {
	cfg        config.ServerConfig
	dispatcher Dispatcher
	encoder    *protocol.Encoder
	conns      *ConnManager
	router     chi.Router
	http       *http.Server
	logger     *slog.Logger
}

// New creates a new Server. A nil encoder uses protocol.NewEncoder.
func New(cfg config.ServerConfig, d Dispatcher, enc *protocol.Encoder, logger *slog.Logger) *Server {
	if enc == nil {
		enc = protocol.NewEncoder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		encoder:    enc,
		conns:      NewConnManager(),
		router:     chi.NewRouter(),
		logger:     logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		// WebSocket (no JSON content-type)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			r.Get("/tutorials", s.handleListTutorials)
			r.Get("/tutorial/{key}", s.handleGetTutorial)
			r.Post("/run-code", s.handleCommand("run_code"))
			r.Post("/hint", s.handleCommand("get_hint"))
			r.Post("/solution", s.handleCommand("get_solution"))
			r.Post("/model_key", s.handleCommand("model_key"))
		})
	})

	r.Handle("/metrics", metrics.Handler())

	// SPA fallback
	if s.cfg.StaticDir != "" {
		r.Handle("/*", spaHandler(s.cfg.StaticDir))
	}
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server starting", "url", "http://localhost"+addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server", "open_connections", s.conns.Count())
	s.conns.CloseAll()
	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
