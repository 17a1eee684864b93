package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	// MetadataKeyRequestID carries the id that correlates a gateway call across processes.
	MetadataKeyRequestID = "x-junction-request-id"
	// MetadataKeyCallerNode carries the id of the node that made the call.
	MetadataKeyCallerNode = "x-junction-caller-node"
)

type requestIDKey struct{}

type callerNodeKey struct{}

// WithRequestID returns a context whose outgoing gateway calls carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored in ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// CallerNodeFromContext returns the id of the node that made the incoming call.
func CallerNodeFromContext(ctx context.Context) (string, bool) {
	node, ok := ctx.Value(callerNodeKey{}).(string)
	return node, ok && node != ""
}

// UnaryClientInterceptor stamps outgoing calls with a request id, reusing the
// one in ctx when present, and with the calling node's id.
func UnaryClientInterceptor(nodeID string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		requestID, ok := RequestIDFromContext(ctx)
		if !ok {
			requestID = uuid.NewString()
		}
		pairs := []string{MetadataKeyRequestID, requestID}
		if nodeID != "" {
			pairs = append(pairs, MetadataKeyCallerNode, nodeID)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryServerInterceptor moves the propagated request id and caller node
// from incoming metadata into the handler's context. Calls made while
// serving reuse the same request id.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(MetadataKeyRequestID); len(v) > 0 {
				ctx = WithRequestID(ctx, v[0])
			}
			if v := md.Get(MetadataKeyCallerNode); len(v) > 0 {
				ctx = context.WithValue(ctx, callerNodeKey{}, v[0])
			}
		}
		return handler(ctx, req)
	}
}
