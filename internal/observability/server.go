package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics, /healthz, and /readyz over HTTP. It carries no
// gateway functionality (execution happens over MCP stdio or the CLI),
// so every route here is unauthenticated and read-only.
type Server struct {
	addr    string
	metrics *Metrics
	health  *HealthChecker
	logger  *slog.Logger

	okapi  *okapi.Okapi
	server *http.Server
}

// NewServer creates the observability HTTP server. metrics and health
// may be nil; the corresponding routes degrade gracefully.
func NewServer(addr string, metrics *Metrics, health *HealthChecker, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		metrics: metrics,
		health:  health,
		logger:  logger,
		okapi:   okapi.New(),
	}
}

// Start registers routes and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.okapi.Get("/healthz", s.handleLiveness)
	s.okapi.Get("/readyz", s.handleReadiness)
	if s.metrics != nil {
		s.okapi.HandleStd("GET", "/metrics",
			promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	s.server = &http.Server{
		Addr:              s.addr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("observability server starting", slog.String("addr", s.addr))
	return s.okapi.StartServer(s.server)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(_ context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("observability server stopping")
	return s.okapi.Shutdown(s.server)
}

func (s *Server) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthStatus{Status: "ok"})
}

func (s *Server) handleReadiness(c *okapi.Context) error {
	if s.health == nil {
		return c.OK(&HealthStatus{Status: "ok"})
	}
	status := s.health.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
