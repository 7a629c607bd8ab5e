package server

import (
	"context"

	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/metrics"
)

// Collector adapts the orphan collector to a Service. Its background worker
// runs for as long as the service is served.
func Collector(c *gc.Collector) Service {
	return &collectorService{c: c}
}

type collectorService struct {
	c *gc.Collector
}

func (s *collectorService) Name() string { return "gc" }

func (s *collectorService) Serve(ctx context.Context) error {
	s.c.Start()
	<-ctx.Done()
	return ctx.Err()
}

func (s *collectorService) Stop(ctx context.Context) error {
	return s.c.Stop(ctx)
}

// The metrics HTTP server runs as a service as is.
var _ Service = (*metrics.Server)(nil)
