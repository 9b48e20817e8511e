package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"authPortal/internal/auth"
)

// SessionService lets non-browser clients check a session token, passed as
// "authorization: Bearer <token>" metadata, and learn whose it is. Messages
// are well-known protobuf types, so no generated code is needed.
const (
	SessionServiceName = "authportal.session.v1.SessionService"
	WhoAmIMethod       = "/" + SessionServiceName + "/WhoAmI"
)

type SessionServiceServer interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// SessionServer implements SessionServiceServer over the user placed in the
// context by the auth interceptor.
type SessionServer struct{}

// WhoAmI returns {id, email, name} of the authenticated user.
func (s *SessionServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	u, err := auth.RequireUserGRPC(ctx)
	if err != nil {
		return nil, err
	}
	out, err := structpb.NewStruct(map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode user: %v", err)
	}
	return out, nil
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

// WhoAmI calls SessionService/WhoAmI on cc.
func WhoAmI(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, WhoAmIMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authportal/session/v1/session.proto",
}
