package remoteasr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/rbright/dictate/internal/inference"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server exposes a local inference.Factory to remote dictate daemons.
type Server struct {
	Open   inference.Factory
	Logger *slog.Logger
}

// Register installs the recognizer service on g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	g := grpc.NewServer()
	s.Register(g)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			g.GracefulStop()
		case <-done:
		}
	}()

	s.logger().Info("asr server listening", "addr", lis.Addr().String())
	if err := g.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) recognize(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.ListValue, error) {
	if s.Open == nil {
		return nil, status.Error(codes.Unavailable, inference.ErrNoBackend.Error())
	}

	md, _ := metadata.FromIncomingContext(ctx)
	path, req, err := parseMetadata(md)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Samples, err = decodeSamples(in.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	backend, err := s.Open(ctx, path)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "open %s backend: %v", path, err)
	}
	if closer, ok := backend.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	segments, err := backend.Recognize(ctx, req)
	if err != nil {
		s.logger().Warn("remote recognize failed", "path", string(path), "error", err.Error())
		return nil, status.Errorf(codes.Internal, "recognize on %s: %v", path, err)
	}
	s.logger().Debug("remote recognize done", "path", string(path), "segments", len(segments), "samples", len(req.Samples))

	out, err := encodeSegments(segments)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
