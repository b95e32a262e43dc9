package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/config"
	"github.com/dgallion1/enrollgest/internal/pipeline"
	"github.com/dgallion1/enrollgest/internal/timetable"
)

// Server is the HTTP API server for enrollgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        blobstore.BlobStore
	catalogStats *timetable.LatencyStats
	metrics      http.Handler
	log          *slog.Logger
	cfg          config.Config
	now          func() time.Time
}

// Deps are the collaborators the HTTP layer serves. CatalogStats and Metrics
// may be nil.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Store        blobstore.BlobStore
	CatalogStats *timetable.LatencyStats
	Metrics      http.Handler
}

// NewServer creates and configures the HTTP server.
func NewServer(d Deps, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		orchestrator: d.Orchestrator,
		store:        d.Store,
		catalogStats: d.CatalogStats,
		metrics:      d.Metrics,
		log:          log,
		cfg:          cfg,
		now:          time.Now,
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
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/process", s.handleProcess)
		r.Get("/api/status/{taskID}", s.handleStatus)
		r.Get("/api/tasks/{taskID}/files", s.handleListFiles)
		r.Get("/api/tasks/{taskID}/files/*", s.handleGetFile)
		r.Get("/api/stats/catalog", s.handleCatalogStats)
		r.Post("/api/frontend-logs", s.handleFrontendLog)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
