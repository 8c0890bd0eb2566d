package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"anystore/pkg/store"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address (default ":8000").
	Addr string

	// Store is the store served over the wire protocol.
	Store *store.Store

	// Logger receives request and error logs (default: no-op).
	Logger *zap.Logger

	// ReadHeaderTimeout bounds header reads (default 10s). Body reads
	// and writes carry no global timeout so large transfers are never
	// cut off mid-stream; cancellation rides on the request context.
	ReadHeaderTimeout time.Duration

	// IdleTimeout bounds keep-alive idling (default 60s).
	IdleTimeout time.Duration
}

// Server serves one store over HTTP.
type Server struct {
	server *http.Server
	logger *zap.Logger
	addr   string
}

// NewServer wires the router, middleware and handlers around the store.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("api: a store is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{logger: cfg.Logger, addr: cfg.Addr}
	h := &handlers{store: cfg.Store, logger: cfg.Logger}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.setupRouter(h),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRouter(h *handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/_list", h.handleList)

	r.Get("/*", h.handleGet)
	r.Head("/*", h.handleHead)
	r.Put("/*", h.handlePut)
	r.Delete("/*", h.handleDelete)
	r.Patch("/*", h.handleTouch)
	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}
