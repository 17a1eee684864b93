package interceptors

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type describedRequest struct{ target string }

func (r describedRequest) LogAttrs() []any { return []any{"target", r.target} }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewLoggingInterceptor_Defaults(t *testing.T) {
	interceptor := NewLoggingInterceptor(&LoggingConfig{})

	assert.NotNil(t, interceptor.logger)
	assert.Equal(t, defaultSlowThreshold, interceptor.config.SlowRequestThreshold)
}

func TestLoggingInterceptor_LogsCall(t *testing.T) {
	var buf bytes.Buffer
	interceptor := NewLoggingInterceptor(&LoggingConfig{Logger: newTestLogger(&buf), LogRequests: true})
	info := &grpc.UnaryServerInfo{FullMethod: "/junction.gateway.v1.PortGateway/Invoke"}
	ctx := WithRequestID(t.Context(), "req-1")

	resp, err := interceptor.UnaryServerInterceptor()(ctx, describedRequest{target: "calc.in"}, info,
		func(context.Context, interface{}) (interface{}, error) { return "ok", nil })

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	out := buf.String()
	assert.Contains(t, out, "gateway request received")
	assert.Contains(t, out, "gateway request completed")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "target=calc.in")
	assert.NotContains(t, out, "response_payload")
}

func TestLoggingInterceptor_Error(t *testing.T) {
	var buf bytes.Buffer
	interceptor := NewLoggingInterceptor(&LoggingConfig{Logger: newTestLogger(&buf)})
	info := &grpc.UnaryServerInfo{FullMethod: "/junction.gateway.v1.PortGateway/Invoke"}

	_, err := interceptor.UnaryServerInterceptor()(t.Context(), "req", info,
		func(context.Context, interface{}) (interface{}, error) {
			return nil, status.Error(codes.NotFound, "no such port")
		})

	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error_code=NotFound")
}

func TestLoggingInterceptor_ExcludeMethod(t *testing.T) {
	var buf bytes.Buffer
	interceptor := NewLoggingInterceptor(&LoggingConfig{
		Logger:         newTestLogger(&buf),
		LogRequests:    true,
		ExcludeMethods: []string{"/test.Service/Excluded"},
	})
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Excluded"}

	_, err := interceptor.UnaryServerInterceptor()(t.Context(), "req", info,
		func(context.Context, interface{}) (interface{}, error) { return "ok", nil })

	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestLoggingInterceptor_Payloads(t *testing.T) {
	var buf bytes.Buffer
	config := NewDebugLoggingConfig()
	config.Logger = newTestLogger(&buf)
	interceptor := NewLoggingInterceptor(config)
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	_, err := interceptor.UnaryServerInterceptor()(t.Context(), "ping", info,
		func(context.Context, interface{}) (interface{}, error) { return "pong", nil })

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "request_payload=ping")
	assert.Contains(t, buf.String(), "response_payload=pong")
}
