package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/filter"
	"odds-arb-watcher/internal/odds"
	"odds-arb-watcher/internal/pipeline"
	"odds-arb-watcher/internal/server/ws"
)

// SnapshotSource returns the latest published snapshot.
type SnapshotSource interface {
	Snapshot() *pipeline.Snapshot
}

// Refresher runs an on-demand cycle.
type Refresher interface {
	Refresh(ctx context.Context) (*pipeline.Snapshot, error)
}

// OutcomeLookup resolves one outcome id against the live catalog.
type OutcomeLookup interface {
	LookupFresh(ctx context.Context, outcomeID string) (odds.Info, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	SummaryTop      int
}

// Server exposes the latest snapshot over HTTP and websocket.
type Server struct {
	opts      Options
	snapshots SnapshotSource
	refresher Refresher
	lookup    OutcomeLookup
	filter    *filter.Filter
	analyzer  *arbitrage.Analyzer
	hub       *ws.Hub
	logger    zerolog.Logger
	started   time.Time
}

// Deps groups the collaborators of the HTTP layer. Refresher, Lookup and Hub
// may be nil; the matching routes then answer 503.
type Deps struct {
	Snapshots SnapshotSource
	Refresher Refresher
	Lookup    OutcomeLookup
	Filter    *filter.Filter
	Analyzer  *arbitrage.Analyzer
	Hub       *ws.Hub
}

// New builds a Server.
func New(opts Options, deps Deps, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.SummaryTop <= 0 {
		opts.SummaryTop = 10
	}
	if deps.Filter == nil {
		deps.Filter = filter.New(nil)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = arbitrage.New(arbitrage.Options{}, logger)
	}
	return &Server{
		opts:      opts,
		snapshots: deps.Snapshots,
		refresher: deps.Refresher,
		lookup:    deps.Lookup,
		filter:    deps.Filter,
		analyzer:  deps.Analyzer,
		hub:       deps.Hub,
		logger:    logger.With().Str("component", "http").Logger(),
		started:   time.Now().UTC(),
	}
}

// Router builds the route tree. ctx bounds websocket connections.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))

		r.Get("/status", s.handleStatus)
		r.Get("/records", s.handleRecords)
		r.Get("/arbitrage", s.handleArbitrage)
		r.Get("/filters", s.handleFilters)
		r.Get("/outcomes/{outcomeID}", s.handleOutcome)
		r.Post("/refresh", s.handleRefresh)
	})

	if s.hub != nil {
		r.Handle("/ws", ws.NewHandler(ctx, s.hub, s.snapshot, s.opts.SummaryTop))
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func (s *Server) snapshot() *pipeline.Snapshot {
	if s.snapshots == nil {
		return pipeline.Empty()
	}
	if snap := s.snapshots.Snapshot(); snap != nil {
		return snap
	}
	return pipeline.Empty()
}
