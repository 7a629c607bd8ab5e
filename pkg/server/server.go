// Package server runs the long-lived background services of a dittofiles
// process and shuts them down together.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
)

// DefaultStopTimeout bounds the Stop calls issued during shutdown.
const DefaultStopTimeout = 30 * time.Second

// Service is a component with its own lifecycle, such as the orphan collector
// or the metrics HTTP server.
type Service interface {
	// Name identifies the service in logs. It must be unique per Server.
	Name() string

	// Serve runs the service and blocks until ctx is cancelled or the
	// service fails. Returning before cancellation is treated as fatal and
	// shuts every other service down.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. It may be called concurrently with
	// Serve and more than once.
	Stop(ctx context.Context) error
}

// Server manages the lifecycle of a set of services.
//
// Lifecycle:
//  1. New()
//  2. AddService() for each service
//  3. Serve() starts all services concurrently and blocks
//  4. Context cancellation or a failing service stops all of them in reverse
//     registration order
//
// Thread safety:
// Safe for concurrent use. Serve may only be called once.
type Server struct {
	mu          sync.RWMutex
	services    []Service
	served      bool
	stopTimeout time.Duration
}

// New creates an empty Server. stopTimeout <= 0 selects DefaultStopTimeout.
func New(stopTimeout time.Duration) *Server {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Server{
		services:    make([]Service, 0, 2),
		stopTimeout: stopTimeout,
	}
}

// AddService registers s. It fails on a duplicate name or once Serve has
// been called.
func (s *Server) AddService(svc Service) error {
	if svc == nil {
		return errors.New("service cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add a service after Serve() has been called")
	}

	name := svc.Name()
	for _, existing := range s.services {
		if existing.Name() == name {
			return fmt.Errorf("service %s already registered", name)
		}
	}

	s.services = append(s.services, svc)
	logger.Debug("Registered %s service", name)
	return nil
}

// Serve starts all registered services and blocks until ctx is cancelled or
// one of them fails.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by cancellation
//   - the failing service's error, wrapped with its name
//   - an error if no services are registered or Serve was already called
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server")
	}
	s.served = true
	if len(s.services) == 0 {
		s.mu.Unlock()
		return errors.New("no services registered; call AddService() before Serve()")
	}
	services := make([]Service, len(s.services))
	copy(services, s.services)
	s.mu.Unlock()

	logger.Info("Starting %d service(s)", len(services))

	// Services that only watch their context must also end when a sibling fails
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so failing services never block on a departed reader
	errChan := make(chan serviceError, len(services))
	var wg sync.WaitGroup

	for _, svc := range services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()

			name := svc.Name()
			err := svc.Serve(runCtx)
			switch {
			case runCtx.Err() != nil:
				logger.Debug("%s service stopped", name)
			case err != nil:
				logger.Error("%s service failed: %v", name, err)
				errChan <- serviceError{name: name, err: err}
			default:
				errChan <- serviceError{name: name, err: errors.New("exited unexpectedly")}
			}
		}(svc)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case failed := <-errChan:
		logger.Error("Service %s failed: %v - shutting down", failed.name, failed.err)
		shutdownErr = fmt.Errorf("%s service: %w", failed.name, failed.err)
	}

	s.stopAll(services)
	cancel()
	wg.Wait()

	logger.Info("All services stopped")
	return shutdownErr
}

type serviceError struct {
	name string
	err  error
}

// stopAll calls Stop on every service in reverse registration order, sharing
// one timeout across all calls. Errors are logged and do not stop the sweep.
func (s *Server) stopAll(services []Service) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if err := svc.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s service: %v", svc.Name(), err)
		}
	}
}

// Services returns a snapshot of the registered services.
func (s *Server) Services() []Service {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Service, len(s.services))
	copy(out, s.services)
	return out
}
