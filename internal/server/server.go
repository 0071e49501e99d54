// Package server is the minimal HTTP/WebSocket realization of the
// Telemetry Fanout's transport: a liveness probe and a WebSocket endpoint
// that subscribes to every event type and accepts inbound reload/test/
// get_status commands. It is not the operator UI's REST surface.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nubi-io/nubi/internal/fanout"
	"github.com/nubi-io/nubi/internal/orchestrator"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Config holds the Server's dependencies.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Fanout       *fanout.Fanout

	// StaticDir, when non-empty, is served at "/" for the operator UI's
	// built assets.
	StaticDir string
}

// Server is the daemon's HTTP surface.
type Server struct {
	Router chi.Router
	Config Config
	Hub    *Hub
}

// New creates a Server with routes and middleware configured. The caller
// is responsible for starting cfg.Fanout separately.
func New(cfg Config) *Server {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(MaxBodySize(1 << 20))

	hub := NewHub(cfg.Fanout, cfg.Orchestrator)

	s := &Server{Router: r, Config: cfg, Hub: hub}
	s.registerRoutes()
	return s
}

// Run starts the HTTP server on addr, blocking until it exits.
func (s *Server) Run(addr string) error {
	slog.Info("listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router)
}

func (s *Server) registerRoutes() {
	s.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.Router.Get("/ws", s.Hub.ServeWS)

	if s.Config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.Config.StaticDir))
		s.Router.Handle("/*", fs)
	}
}
