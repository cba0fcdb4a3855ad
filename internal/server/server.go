// Package server is the backend the feed client streams from.
//
// Routes:
//
//	GET /api/feed/{type}/stream?page=N   Server-Sent Events, one page
//	GET /api/feed/{type}?page=N          the same page as one JSON document
//	GET /healthz
//	GET /metrics
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abelbrown/cineswipe/internal/assemble"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/otel"
)

const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// Assembler produces feed pages. *assemble.Assembler implements it.
type Assembler interface {
	Page(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error)
	Stream(ctx context.Context, ct media.ContentType, page int, emit assemble.Emit) error
}

// Options configures a Server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Metrics         *Metrics
	Logger          *log.Logger
	Events          *otel.Logger
}

// Server serves the feed endpoints.
type Server struct {
	asm     Assembler
	opts    Options
	metrics *Metrics
	log     *log.Logger
	events  *otel.Logger
	handler http.Handler
}

// New returns a Server over asm.
func New(asm Assembler, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	s := &Server{
		asm:     asm,
		opts:    opts,
		metrics: opts.Metrics,
		log:     logging.OrDiscard(opts.Logger).WithPrefix("server"),
		events:  opts.Events,
	}
	s.handler = s.routes()
	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Get("/api/feed/{type}", s.handlePage)
	r.Get("/api/feed/{type}/stream", s.handleStream)
	return r
}

// Run serves on the configured address until ctx is done, then shuts down
// within the shutdown timeout. Open streams see ctx canceled and end.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	err := srv.Shutdown(sctx)
	if serr := <-errc; serr != nil && !errors.Is(serr, http.ErrServerClosed) && err == nil {
		err = serr
	}
	return err
}
