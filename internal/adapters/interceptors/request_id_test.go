package interceptors

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func captureOutgoing(t *testing.T, ctx context.Context, nodeID string) metadata.MD {
	t.Helper()
	var md metadata.MD
	invoker := func(ctx context.Context, _ string, _, _ interface{}, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}
	require.NoError(t, UnaryClientInterceptor(nodeID)(ctx, "/test.Service/Method", nil, nil, nil, invoker))
	return md
}

func TestUnaryClientInterceptor_GeneratesRequestID(t *testing.T) {
	md := captureOutgoing(t, t.Context(), "node-a")

	require.Len(t, md.Get(MetadataKeyRequestID), 1)
	_, err := uuid.Parse(md.Get(MetadataKeyRequestID)[0])
	assert.NoError(t, err)
	assert.Equal(t, []string{"node-a"}, md.Get(MetadataKeyCallerNode))
}

func TestUnaryClientInterceptor_ReusesRequestID(t *testing.T) {
	md := captureOutgoing(t, WithRequestID(t.Context(), "req-7"), "")

	assert.Equal(t, []string{"req-7"}, md.Get(MetadataKeyRequestID))
	assert.Empty(t, md.Get(MetadataKeyCallerNode))
}

func TestUnaryServerInterceptor_ExtractsMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(t.Context(), metadata.Pairs(
		MetadataKeyRequestID, "req-9",
		MetadataKeyCallerNode, "node-b",
	))

	var gotID, gotNode string
	_, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{},
		func(ctx context.Context, _ interface{}) (interface{}, error) {
			gotID, _ = RequestIDFromContext(ctx)
			gotNode, _ = CallerNodeFromContext(ctx)
			return nil, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "req-9", gotID)
	assert.Equal(t, "node-b", gotNode)
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	_, ok := RequestIDFromContext(t.Context())
	assert.False(t, ok)

	_, ok = RequestIDFromContext(WithRequestID(t.Context(), ""))
	assert.False(t, ok)
}
