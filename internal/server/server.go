// ABOUTME: Reference backend that the workspace mirrors its domains to
// ABOUTME: Owns the HTTP server lifecycle, store, dedupe cache and health endpoints

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flareos/flareforge/internal/config"
	"github.com/flareos/flareforge/internal/dedupe"
	"github.com/flareos/flareforge/internal/store"
)

// dedupeMaxEntries bounds the number of remembered chat sends.
const dedupeMaxEntries = 100_000

// Server serves the chat, memory, key and document REST surface.
type Server struct {
	config     *config.Config
	store      store.Store
	dedupe     *dedupe.Cache
	validate   *validator.Validate
	metrics    *metrics
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	// sendMu serializes chat sends so a thread's read-modify-append and the
	// dedupe bookkeeping happen as one step.
	sendMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// New creates a server around an open store. The server takes ownership of
// the store and closes it on Shutdown.
func New(cfg *config.Config, s store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		config:   cfg,
		store:    s,
		dedupe:   dedupe.New(cfg.Server.DedupeTTL, dedupeMaxEntries),
		validate: newValidator(),
		logger:   logger.With("component", "server"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if cfg.Metrics.Enabled {
		srv.metrics = newMetrics()
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /health/ready", srv.handleReady)

	srv.registerAPIRoutes(mux)

	if srv.metrics != nil {
		mux.Handle("GET "+cfg.Metrics.Path, srv.metrics.handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	var handler http.Handler = mux
	if srv.metrics != nil {
		handler = srv.metrics.instrument(handler)
	}
	srv.handler = cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(handler)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv
}

// Open creates the SQLite store named by cfg and a server around it.
// FLAREFORGE_DB_PATH overrides database.path.
func Open(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, s, logger), nil
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("FLAREFORGE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// Handler returns the server's HTTP handler with CORS and metrics applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on server.http_addr and blocks until ctx is canceled or the
// server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the caller's is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases the store and dedupe cache.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", s.store.Close())
	s.dedupe.Close()

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
