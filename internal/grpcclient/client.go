package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/smile-overlay/internal/landmark"
	"github.com/example/smile-overlay/internal/logging"
	"github.com/example/smile-overlay/internal/smile"
)

// DialLandmarkProvider returns a landmark provider backed by a remote gRPC service.
// The connection is established lazily so the service can start before its provider.
func DialLandmarkProvider(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger) (landmark.Provider, *grpc.ClientConn, error) {
	conn, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_landmark_provider", "", err)
		logger.Error("failed to dial landmark provider", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewLandmarkProvider(conn, timeout, logger), conn, nil
}

// NewLandmarkProvider wraps an existing connection.
func NewLandmarkProvider(conn grpc.ClientConnInterface, timeout time.Duration, logger *zap.Logger) landmark.Provider {
	return &grpcLandmarkProvider{conn: conn, timeout: timeout, logger: logger.Named("landmark_grpc")}
}

type grpcLandmarkProvider struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	logger  *zap.Logger
}

func (g *grpcLandmarkProvider) Detect(ctx context.Context, image []byte) (*smile.FaceObservation, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, detectMethod, wrapperspb.Bytes(image), resp); err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("%w: %s", landmark.ErrUndecodableImage, status.Convert(err).Message())
		}
		wrapped := logging.NewOperationError("grpcclient.detect", "", err)
		g.logger.Error("landmark provider call failed", zap.Error(wrapped), zap.Int("image_bytes", len(image)))
		return nil, wrapped
	}

	obs, err := observationFromStruct(resp)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.decode_response", "", err)
	}
	return obs, nil
}
