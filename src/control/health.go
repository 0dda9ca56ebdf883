// Package control exposes the supervisor's state over the standard gRPC
// health protocol.
package control

import (
	"fmt"
	"net"

	"quote-observer/src/logger"
	"quote-observer/src/models"
	"quote-observer/src/stream"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StreamService is reported SERVING only while the supervisor is streaming.
const StreamService = "quote-observer.stream"

// -----------------------------------------------------------------------------

type HealthServer struct {
	Config models.MGrpcConfig
	Logger *logger.Logger

	server *grpc.Server
	health *health.Server
}

// -----------------------------------------------------------------------------

func NewHealthServer(cfg models.MGrpcConfig, log *logger.Logger) *HealthServer {
	h := &HealthServer{
		Config: cfg,
		Logger: log,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}

	healthpb.RegisterHealthServer(h.server, h.health)

	// The process itself is up; the stream starts out not serving.
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(StreamService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// -----------------------------------------------------------------------------

// OnTransition is registered as a supervisor transition hook.
func (h *HealthServer) OnTransition(t stream.Transition) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if t.To == stream.Streaming {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(StreamService, status)
}

// -----------------------------------------------------------------------------

// Start listens on the configured address and serves until Stop.
func (h *HealthServer) Start() error {
	addr := fmt.Sprintf("%s:%d", h.Config.Host, h.Config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}

	h.Logger.Info("Starting gRPC health server on %s", addr)
	return h.Serve(lis)
}

func (h *HealthServer) Serve(lis net.Listener) error {
	return h.server.Serve(lis)
}

// Stop marks every service NOT_SERVING so watchers see the shutdown, then
// drains open RPCs.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
