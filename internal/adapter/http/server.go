package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusFunc returns a JSON-encodable snapshot of the feed's live state.
type StatusFunc func() any

// Server exposes health, readiness, status, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// ErrNotFound marks JSONHandler errors that should be answered with 404.
var ErrNotFound = errors.New("not found")

// NewServer creates an HTTP server with /healthz, /readyz, /status, and
// /metrics routes. status may be nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, status StatusFunc, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		mux:    mux,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.HandleFunc("GET /status", handleStatus(status))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handle mounts an extra route. It must be called before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// JSONHandler serves the result of fn as JSON. Errors wrapping ErrNotFound
// become 404; any other error becomes 502 since it comes from the radar
// server.
func JSONHandler(fn func(r *http.Request) (any, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		switch {
		case errors.Is(err, ErrNotFound):
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case err != nil:
			sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		default:
			sharedobs.WriteJSON(w, http.StatusOK, v)
		}
	})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleStatus(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if status == nil {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "status not available"})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, status())
	}
}
