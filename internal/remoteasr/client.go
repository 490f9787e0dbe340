package remoteasr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/dictate/internal/inference"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultDialTimeout bounds the wait for the connection to become ready.
const DefaultDialTimeout = 3 * time.Second

// Client is a connection to a remote recognizer.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to endpoint and waits until the connection is ready.
func Dial(ctx context.Context, endpoint string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("asr endpoint is empty")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial asr grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for asr grpc readiness: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Factory returns an inference.Factory whose backends run on the remote host.
// The path is forwarded so the server picks the matching local runtime.
func (c *Client) Factory() inference.Factory {
	return func(_ context.Context, path inference.Path) (inference.Backend, error) {
		return remoteBackend{conn: c.conn, path: path}, nil
	}
}

type remoteBackend struct {
	conn *grpc.ClientConn
	path inference.Path
}

func (b remoteBackend) Recognize(ctx context.Context, req inference.Request) ([]inference.Segment, error) {
	ctx = metadata.NewOutgoingContext(ctx, requestMetadata(b.path, req))

	in := wrapperspb.Bytes(encodeSamples(req.Samples))
	out := new(structpb.ListValue)
	if err := b.conn.Invoke(ctx, recognizeMethod, in, out); err != nil {
		return nil, fmt.Errorf("remote recognize: %w", err)
	}
	if req.Progress != nil {
		req.Progress(100)
	}
	return decodeSegments(out)
}

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
