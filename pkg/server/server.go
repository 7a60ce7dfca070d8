// Package server exposes the assistant over HTTP.
//
// Handlers answer with status 200 and report failures in an "error" field,
// the contract the web client was written against. Only malformed request
// bodies get a 4xx status.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/dialogue"
	"github.com/entrhq/medisimple/pkg/history"
	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/entrhq/medisimple/pkg/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Deps are the components the handlers drive.
type Deps struct {
	Pages      *browser.PageManager
	Hosts      *browser.HostMatcher
	Chat       *dialogue.Controller
	History    history.Store
	Planner    *plan.Planner
	Executor   *plan.Executor
	Simplifier *dialogue.Simplifier
	Tasks      *tasks.Store
	Runner     *tasks.Runner

	// Model is reported by /health.
	Model string
}

// Options configures the HTTP layer.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	ConnectTimeout  time.Duration
	HistoryLimit    int
}

// Server is the HTTP API.
type Server struct {
	router *chi.Mux
	opts   Options
	deps   Deps
	log    zerolog.Logger
}

// New builds the router.
func New(opts Options, deps Deps, log zerolog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		deps:   deps,
		log:    log,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Post("/connect", s.handleConnect)
	s.router.Post("/plan", s.handlePlan)
	s.router.Post("/execute", s.handleExecute)
	s.router.Post("/simplify", s.handleSimplify)
	s.router.Post("/analyze", s.handleAnalyze)
	s.router.Post("/click-best", s.handleClickBest)
	s.router.Post("/chat", s.handleChat)
	s.router.Get("/history/{session_id}", s.handleHistory)
	s.router.Delete("/history/{session_id}", s.handleClearHistory)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleSaveTask)
		r.Post("/{name}/run", s.handleRunTask)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains requests and closes
// the browser.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "serve")
		}
		return nil
	})

	eg.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			s.log.Error().Err(err).Msg("server shutdown error")
		}

		if s.deps.Pages != nil {
			if berr := s.deps.Pages.Shutdown(); berr != nil {
				s.log.Error().Err(berr).Msg("browser shutdown error")
			}
		}
		s.log.Info().Msg("shutdown complete")
		return err
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
