package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/0mp/rstfmt/internal/codefmt"
	"github.com/0mp/rstfmt/internal/config"
	"github.com/0mp/rstfmt/internal/markup"
	_ "github.com/0mp/rstfmt/internal/markup/markdown"
	_ "github.com/0mp/rstfmt/internal/markup/rst"
	_ "github.com/0mp/rstfmt/internal/markup/text"
)

// Server is the HTTP API server for rstfmt.
type Server struct {
	router chi.Router
	code   codefmt.Registry
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		code: cfg.CodeRegistry(),
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints when an API key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/api/dialects", s.handleDialects)
		r.Post("/api/format", s.handleFormat)
		r.Post("/api/check", s.handleCheck)
		r.Post("/api/dump", s.handleDump)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleDialects(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"dialects": markup.Names()})
}
