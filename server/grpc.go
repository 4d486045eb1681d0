package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves the standard gRPC health protocol so orchestrators can
// probe the API without going through HTTP.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	srv := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return &HealthServer{grpc: srv, health: h, logger: logger}
}

// Serve marks the service as serving and blocks until Shutdown.
func (hs *HealthServer) Serve(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.logger.Info("grpc health server listening", zap.String("address", address))

	return hs.grpc.Serve(lis)
}

func (hs *HealthServer) Shutdown() {
	hs.health.Shutdown()
	hs.grpc.GracefulStop()
}
