package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/pagemirror/internal/config"
	"github.com/dgallion1/pagemirror/internal/confluence"
	"github.com/dgallion1/pagemirror/internal/enrich"
	"github.com/dgallion1/pagemirror/internal/render"
)

// PageSource fetches pages from the external document service.
type PageSource interface {
	GetPage(ctx context.Context, id string) (*confluence.Page, error)
}

// Server is the mirror's HTTP surface: the page-routing frontend plus a JSON
// API for programmatic consumers.
type Server struct {
	router   chi.Router
	pages    PageSource
	pipeline *enrich.Pipeline
	renderer *render.Renderer
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(pages PageSource, pipeline *enrich.Pipeline, renderer *render.Renderer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		pages:    pages,
		pipeline: pipeline,
		renderer: renderer,
		log:      log,
		cfg:      cfg,
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

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handlePage)
	r.Get("/static/demo.png", s.handleDemoImage)

	r.Group(func(r chi.Router) {
		if s.cfg.MirrorAPIKey != "" {
			r.Use(AuthMiddleware(s.cfg.MirrorAPIKey))
		}
		r.Get("/api/pages/{pageID}", s.handleAPIPage)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
