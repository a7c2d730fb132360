// Package server exposes live map views over HTTP.
//
// Each view is an engine mounted in a [session.Registry]. Clients create a
// view, post map events to it and read back the interaction snapshot
// together with the map state the issued directives produced. Clients that
// drive a real map poll GET /views/{id}/directives instead.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gpmc-lab-ufrgs/atlas/internal/metrics"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/comparison"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/selection"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/session"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/sink"
)

// Server serves the view API.
type Server struct {
	views     *session.Registry
	catalogue *geodata.Catalogue
	logger    *log.Logger
	router    chi.Router
	metrics   bool
	capacity  int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts the Prometheus handler at /metrics.
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

// WithComparisonCapacity sets the largest comparison route the server
// resolves. It should match the capacity its views are built with.
func WithComparisonCapacity(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// New builds a server over a view registry and a loaded catalogue.
func New(views *session.Registry, catalogue *geodata.Catalogue, opts ...Option) *Server {
	s := &Server{
		views:     views,
		catalogue: catalogue,
		logger:    log.Default(),
		capacity:  comparison.Capacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ViewFactory returns the session factory used by the server: each view
// records its directives and resolves parent states through the catalogue.
// opts are applied to every engine after those defaults.
func ViewFactory(catalogue *geodata.Catalogue, logger *log.Logger, opts ...engine.Option) session.Factory {
	return func(id string) (*engine.Engine, *sink.Recorder) {
		rec := sink.NewRecorder()
		l := log.Default()
		if logger != nil {
			l = logger.With("view", id)
		}
		eng := engine.New(append([]engine.Option{
			engine.WithSinks(rec.Sinks()),
			engine.WithResolver(catalogue.Resolve),
			engine.WithLogger(l),
		}, opts...)...)
		eng.Subscribe(func(c selection.Change) {
			l.Debug("selection changed", "level", c.Level, "field", c.Field, "to", c.New)
		})
		return eng, rec
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/views", func(r chi.Router) {
		r.Get("/", s.handleListViews)
		r.Post("/", s.handleCreateView)
		r.Route("/{viewID}", func(r chi.Router) {
			r.Get("/", s.handleGetView)
			r.Delete("/", s.handleDeleteView)
			r.Post("/events", s.handleEvent)
			r.Get("/directives", s.handleDrainDirectives)
			r.Get("/comparison", s.handleGetComparison)
			r.Post("/comparison/{featureID}", s.handleAddComparison)
			r.Delete("/comparison/{featureID}", s.handleRemoveComparison)
		})
	})
	r.Get("/comparison/{route}", s.handleComparisonRoute)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
