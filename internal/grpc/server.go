package grpcserver

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"authPortal/internal/auth"
	"authPortal/internal/config"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// NewServer builds the gRPC server: the standard health service plus
// SessionService, behind the session-token interceptor.
func NewServer(sessions auth.Resolver) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(sessions, healthCheckMethod)))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	RegisterSessionServiceServer(srv, &SessionServer{})
	return srv
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
// An empty address disables the listener and yields a no-op shutdown.
func StartGRPC(cfg *config.Config, sessions auth.Resolver, log *slog.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}
	addr := cfg.GRPC.Address
	if addr == "" {
		log.Info("gRPC listener disabled")
		return func(context.Context) error { return nil }, nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext; terminate TLS in front of this listener in production.
	srv := NewServer(sessions)
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("gRPC serve", "err", err)
		}
	}()
	log.Info("gRPC server listening", "addr", lis.Addr().String())

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
