package grpcclient

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/smile-overlay/internal/landmark"
)

// RegisterLandmarkService exposes p on s using the same wire contract the client speaks.
func RegisterLandmarkService(s *grpc.Server, p landmark.Provider) {
	s.RegisterService(&landmarkServiceDesc, &landmarkServer{provider: p})
}

type landmarkServer struct {
	provider landmark.Provider
}

func (s *landmarkServer) detect(ctx context.Context, in *wrapperspb.BytesValue) (any, error) {
	obs, err := s.provider.Detect(ctx, in.GetValue())
	if err != nil {
		if errors.Is(err, landmark.ErrUndecodableImage) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return observationToStruct(obs), nil
}

func detectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	server := srv.(*landmarkServer)
	if interceptor == nil {
		return server.detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: detectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return server.detect(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var landmarkServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Detect", Handler: detectHandler},
	},
	Streams: []grpc.StreamDesc{},
}
