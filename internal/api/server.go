package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/wikipub/internal/config"
	"github.com/dgallion1/wikipub/internal/pipeline"
	"github.com/dgallion1/wikipub/internal/preserve"
	"github.com/dgallion1/wikipub/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for wikipub.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	engine       *preserve.Engine
	stats        *stats.PreserveStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, engine *preserve.Engine, st *stats.PreserveStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		engine:       engine,
		stats:        st,
		log:          log,
		cfg:          cfg,
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

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.WikipubAPIKey, s.log))

		r.Post("/api/preserve", s.handlePreserve)
		r.Post("/api/render", s.handleRender)

		r.Post("/api/publish", s.handlePublish)
		r.Get("/api/publish/{jobID}/status", s.handlePublishStatus)

		r.Get("/api/pages/{pageID}/markers", s.handlePageMarkers)
		r.Get("/api/stats/preserve", s.handlePreserveStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
