// Package grpcapi serves the gRPC health and reflection services. The
// serving status follows the readiness of the service's backends.
package grpcapi

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ai-speech-upload-service/internal/observability"
	"ai-speech-upload-service/internal/observability/metrics"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "ai.speech.upload.UploadService"

// DefaultCheckInterval is how often Watch re-evaluates readiness.
const DefaultCheckInterval = 10 * time.Second

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks []observability.ReadinessCheck
}

// New creates a gRPC server with health, reflection and the metrics interceptor.
// The status starts as NOT_SERVING until the first Refresh.
func New(checks []observability.ReadinessCheck, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)))
	g := grpc.NewServer(opts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	return &Server{grpc: g, health: hs, checks: checks}
}

// Refresh runs the readiness checks and publishes the resulting status.
func (s *Server) Refresh(ctx context.Context) bool {
	failures := observability.CheckAll(ctx, s.checks)
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if len(failures) > 0 {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		log.Warn().Interface("failures", failures).Msg("gRPC health NOT_SERVING")
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	return len(failures) == 0
}

// Watch refreshes the health status every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		s.Refresh(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
	return s.grpc.Serve(lis)
}

// Shutdown marks the service NOT_SERVING and stops gracefully.
func (s *Server) Shutdown() {
	log.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
