package grpc_control

import (
	"fmt"
	"net"

	"trade-gateway/src/config"
	"trade-gateway/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// -----------------------------------------------------------------------------
// GRPCService handles gRPC server lifecycle
// -----------------------------------------------------------------------------

// GRPCService exposes the standard health service so orchestration can
// probe the gateway out of band from the client port.
type GRPCService struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.Config
	logger   *logger.Logger
	running  bool
}

// -----------------------------------------------------------------------------

// NewGRPCService creates a new GRPCService instance
func NewGRPCService(cfg *config.Config, log *logger.Logger) (*GRPCService, error) {
	address := fmt.Sprintf("%s:%d", cfg.GrpcHost, cfg.GrpcPort)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	serverOptions := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(10 * 1024 * 1024), // 10MB
		grpc.MaxSendMsgSize(10 * 1024 * 1024), // 10MB
	}
	server := grpc.NewServer(serverOptions...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	return &GRPCService{
		server:   server,
		health:   healthServer,
		listener: listener,
		config:   cfg,
		logger:   log,
		running:  false,
	}, nil
}

// -----------------------------------------------------------------------------

// Start serves in a background goroutine.
func (s *GRPCService) Start() {
	s.running = true
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Info("gRPC control listening on %s", s.listener.Addr())

	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			s.logger.Error("gRPC server stopped: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// SetNotServing flips the health probe during shutdown.
func (s *GRPCService) SetNotServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Stop performs a graceful stop.
func (s *GRPCService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.server.GracefulStop()
}
