// Package server serves stored snapshots over HTTP.
//
// A visual debugger client asks for a snapshot's namespace, then requests
// symbols one reference at a time as the user expands them. The server
// answers those requests from the snapshot's captured symbol table, and can
// also draw the snapshot's computation graph.
//
// # Routes
//
//	GET    /healthz                                liveness probe
//	GET    /metrics                                Prometheus metrics (with WithMetrics)
//	GET    /api/snapshots                          list stored snapshots
//	POST   /api/snapshots                          upload a snapshot (JSON)
//	GET    /api/snapshots/{id}                     namespace shells
//	DELETE /api/snapshots/{id}                     remove a snapshot
//	GET    /api/snapshots/{id}/symbols/{ref}       one symbol's payload
//	GET    /api/snapshots/{id}/graph.{format}      rendered graph (?head=&detailed=)
//
// Errors are JSON objects {"code": ..., "message": ...}, with the HTTP
// status derived from the code.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilxb/xnode-db/pkg/pipeline"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

// Defaults for [Config] fields left zero.
const (
	DefaultAddr           = "127.0.0.1:8642"
	DefaultMaxUploadBytes = 64 << 20
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 2 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Server answers snapshot and symbol requests.
type Server struct {
	store     store.Store
	runner    *pipeline.Runner
	logger    *log.Logger
	gatherer  prometheus.Gatherer
	maxUpload int64
	router    chi.Router
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMaxUploadBytes limits the size of uploaded snapshots.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New creates a server over st. Rendering and snapshot loading go through
// runner, so its cache is shared with the rest of the process. A nil runner
// renders without caching.
func New(st store.Store, runner *pipeline.Runner, opts ...Option) *Server {
	s := &Server{
		store:     st,
		logger:    log.Default(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	s.runner = runner
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/snapshots", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleUpload)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleNamespace)
			r.Delete("/", s.handleDelete)
			r.Get("/symbols/{ref}", s.handleSymbol)
			r.Get("/graph.{format}", s.handleGraph)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.logger, notFound("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Message: r.Method + " not allowed"})
	})
	return r
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("serving snapshots", "addr", "http://"+ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
