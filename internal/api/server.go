// Package api implements the reference sync server: the pull/push wire
// protocol over a SQLite store, with bearer-token auth and request logging.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/serverdb"
)

// Server is the HTTP API server for aurasync.
type Server struct {
	config Config
	http   *http.Server
	store  *serverdb.ServerDB
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) *Server {
	s := &Server{config: cfg, store: store}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Routes builds the request mux. Exported so tests can mount it on an
// httptest server.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/sync/pull", s.requireAuth(s.handlePull))
	mux.HandleFunc("POST /v1/sync/push", s.requireAuth(s.handlePush))
	mux.HandleFunc("GET /v1/sync/status", s.requireAuth(s.handleStatus))

	// Generic resource endpoints for replayed offline operations.
	mux.HandleFunc("POST /v1/resources/{collection}", s.requireAuth(s.handleResourceWrite))
	mux.HandleFunc("PUT /v1/resources/{collection}/{id}", s.requireAuth(s.handleResourceWrite))
	mux.HandleFunc("DELETE /v1/resources/{collection}/{id}", s.requireAuth(s.handleResourceDelete))
	mux.HandleFunc("GET /v1/resources/{collection}/{id}", s.requireAuth(s.handleResourceRead))

	return s.logRequests(mux)
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requireAuth validates the bearer token when one is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.config.APIKey {
				writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or missing api key")
				return
			}
		}
		next(w, r)
	}
}

// logRequests logs every request with duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method, "path", r.URL.Path,
			"device", r.Header.Get("X-Device-ID"), "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
