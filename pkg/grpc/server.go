package grpc

import (
	"fmt"
	"net"

	"github.com/example/monarch/pkg/config"
	"github.com/example/monarch/pkg/identity"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// LedgerService is the health service name reported for the sync session.
const LedgerService = "monarch.ledger"

// HealthServer exposes the standard gRPC health protocol. LedgerService is
// SERVING while an identity is resolved and the mirrors are syncing.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	config *config.GRPCConfig
	logger *zap.Logger
}

func NewHealthServer(cfg *config.GRPCConfig, logger *zap.Logger) *HealthServer {
	server := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	reflection.Register(server)

	hs.SetServingStatus(LedgerService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		server: server,
		health: hs,
		config: cfg,
		logger: logger,
	}
}

// Track flips LedgerService with the session.
func (s *HealthServer) Track(session *identity.Session) {
	session.OnChange(func(_ identity.Identity, resolved bool) {
		s.SetServing(resolved)
	})
}

func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(LedgerService, status)
	s.logger.Info("Health status changed",
		zap.String("service", LedgerService),
		zap.String("status", status.String()))
}

func (s *HealthServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("gRPC health server starting", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
