package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"authPortal/models"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts a
// Bearer session token from incoming metadata, resolves it and injects the
// user into the context. Methods listed in allowUnauthenticated bypass
// authentication (e.g., health checks).
func NewUnaryAuthInterceptor(resolver Resolver, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		token, err := TokenFromMD(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		u, err := resolver.Resolve(ctx, token)
		if err != nil {
			return nil, status.Error(codes.Internal, "resolve session")
		}
		if u == nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired session")
		}
		return handler(WithUser(ctx, u), req)
	}
}

// RequireUserGRPC is RequireUser with the error mapped to a gRPC status.
func RequireUserGRPC(ctx context.Context) (*models.User, error) {
	u, err := RequireUser(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "missing user")
	}
	return u, nil
}

// TokenFromMD extracts a Bearer token from gRPC metadata.
func TokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(vals[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
