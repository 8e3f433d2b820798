// Package grpc runs the readiness endpoint: a standard gRPC health service
// whose status follows the server's dependencies.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ReadinessCheck is any dependency that can report whether it is usable.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

type HealthServer struct {
	address  string
	checks   []ReadinessCheck
	health   *health.Server
	logger   logging.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewHealthServer(a string, l logging.Logger, checks ...ReadinessCheck) *HealthServer {
	return &HealthServer{
		address:  a,
		checks:   checks,
		health:   health.NewServer(),
		logger:   l.With("module", "grpc_health"),
		interval: 5 * time.Second,
		timeout:  time.Second,
	}
}

// probe runs every check once and publishes the combined status.
func (s *HealthServer) probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.IsReady(cctx)
		cancel()

		if err != nil {
			s.logger.Warn(ctx, "readiness check failed", "check", c.Name(), "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus("", status)
	return status
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	// start pessimistic until the first probe passes
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.probe(ctx)
	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
