package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPort is the metrics port when none is configured.
const DefaultPort = 9090

// Server exposes the metrics registry over HTTP:
//
//	GET /metrics  Prometheus exposition, 503 while collection is disabled
//	GET /healthz  liveness probe for whoever scrapes /metrics
//
// It is run as a service of pkg/server: Serve blocks until the context is
// cancelled or Stop is called, and Stop drains in-flight scrapes.
type Server struct {
	srv  *http.Server
	port int

	mu       sync.Mutex
	listener net.Listener
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on (0 = DefaultPort)
	Port int

	// Host restricts the listen address (empty = all interfaces)
	Host string
}

// NewServer builds a stopped metrics server. The /metrics handler is bound to
// the registry as it is now, so InitRegistry must run first when metrics are
// enabled.
func NewServer(config ServerConfig) *Server {
	if config.Port <= 0 {
		config.Port = DefaultPort
	}

	mux := http.NewServeMux()
	if registry := GetRegistry(); registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		port: config.Port,
	}
}

// Name identifies the server among the services of pkg/server.
func (s *Server) Name() string { return "metrics" }

// Handler returns the HTTP handler, for mounting or testing without a socket.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Port returns the configured TCP port.
func (s *Server) Port() int { return s.port }

// Addr returns the bound address once Serve is listening, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve listens and serves until ctx is cancelled or Stop is called.
//
// It returns ctx.Err() on cancellation, leaving the drain to Stop, nil after
// Stop, and the listen or serve error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.srv.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info("Metrics server listening on %s", ln.Addr())

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx expires.
// Calling it more than once, or before Serve, is harmless.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.Debug("Metrics server stopped")
	return nil
}
