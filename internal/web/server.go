// Package web serves the editable landing page and the JSON API behind its
// edit surface.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"flyer/internal/backend"
	"flyer/internal/content"
	"flyer/internal/logging"
	"flyer/internal/notify"
	"flyer/internal/page"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var logger = logging.For("web")

// Config wires a Server to the content it serves.
type Config struct {
	Addr      string // listen address (default: "127.0.0.1:8080")
	Store     *content.Store
	Page      *page.Page
	Sanitizer *page.Sanitizer
	Hub       *notify.Hub     // optional; /api/events answers 503 without it
	Blob      backend.Backend // optional; the slot exposed at /api/blob
}

// Server is the flyer HTTP server.
type Server struct {
	addr      string
	store     *content.Store
	page      *page.Page
	sanitizer *page.Sanitizer
	hub       *notify.Hub
	blob      backend.Backend
	templates *template.Template
	router    chi.Router
}

// NewServer validates cfg and builds the router.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("web: Store must not be nil")
	}
	if cfg.Page == nil {
		return nil, errors.New("web: Page must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("initializing templates: %w", err)
	}
	s := &Server{
		addr:      cfg.Addr,
		store:     cfg.Store,
		page:      cfg.Page,
		sanitizer: cfg.Sanitizer,
		hub:       cfg.Hub,
		blob:      cfg.Blob,
		templates: tmpl,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage)
	r.Get("/health", s.handleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS())))

	r.Route("/api", func(r chi.Router) {
		r.Route("/content", func(r chi.Router) {
			r.Get("/", s.handleContent)
			r.Get("/status", s.handleStatus)
			r.Post("/save", s.handleSave)
			r.Post("/reload", s.handleReload)
			r.Get("/{key}", s.handleGet)
			r.Put("/{key}", s.handlePut)
		})
		r.Get("/events", s.handleEvents)
		r.Get("/blob", s.handleBlobGet)
		r.Put("/blob", s.handleBlobPut)
	})
	return r
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}
