package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/formscan/formscan/internal/api"
	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/jobs"
	"github.com/formscan/formscan/internal/ocr"
	"github.com/formscan/formscan/internal/server/endpoints"
	"github.com/formscan/formscan/internal/svcctx"
)

// Server is the formscan HTTP server. It owns the worker pool and job
// ledger lifecycles: the pool starts with the server and drains on
// shutdown, the ledger is opened on start and closed on stop.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	logger     *slog.Logger

	pool   *jobs.Pool
	ledger jobs.Ledger
	engine *ocr.Engine

	// recognizer override for tests; nil means Tesseract from config
	recognizer ocr.Recognizer
	// ledger override for tests; nil means sqlite from config
	ledgerOverride jobs.Ledger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Recognizer overrides the Tesseract binding (used by tests).
	Recognizer ocr.Recognizer
	// Ledger overrides the sqlite ledger (used by tests).
	Ledger jobs.Ledger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	s := &Server{
		configMgr:      cfg.ConfigManager,
		logger:         cfg.Logger,
		recognizer:     cfg.Recognizer,
		ledgerOverride: cfg.Ledger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous field extraction runs OCR
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server, worker pool, and job ledger.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	cfg := s.configMgr.Get()

	// Open the job ledger
	ledger := s.ledgerOverride
	if ledger == nil {
		var err error
		ledger, err = jobs.OpenSQLite(ctx, cfg.Ledger.Path)
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to open job ledger: %w", err)
		}
		s.logger.Info("job ledger ready", "path", cfg.Ledger.Path)
	}
	s.ledger = ledger

	// Create the worker pool and start it; its lifetime is the server's.
	s.pool = jobs.NewPool(jobs.PoolConfig{
		Workers:   cfg.OCR.WorkerPoolSize,
		QueueSize: cfg.OCR.QueueSize,
		Logger:    s.logger,
	})

	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()

	// Create the recognizer and engine
	rec := s.recognizer
	if rec == nil {
		rec = ocr.NewTesseract(ocr.TesseractConfig{
			TessdataPrefix: cfg.OCR.TessdataPrefix,
			Languages:      cfg.OCR.Languages,
		})
	}

	s.engine = ocr.NewEngine(ocr.EngineConfig{
		Pool:            s.pool,
		Ledger:          s.ledger,
		Recognizer:      rec,
		DPI:             cfg.OCR.DPI,
		DefaultLanguage: cfg.OCR.DefaultLanguage,
		Logger:          s.logger,
	})

	go s.pool.Start(poolCtx)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Engine:      s.engine,
		Pool:        s.pool,
		Ledger:      s.ledger,
		ConfigStore: s.configMgr,
		Logger:      s.logger,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and ledger.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.logger.Error("job ledger close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Engine returns the extraction engine.
// Returns nil if the server hasn't started yet.
func (s *Server) Engine() *ocr.Engine {
	return s.engine
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the engine or ledger aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engine == nil || s.ledger == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
