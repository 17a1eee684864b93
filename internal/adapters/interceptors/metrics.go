package interceptors

import (
	"context"
	"path"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GatewayMetricsCollector receives one event per served gateway call.
type GatewayMetricsCollector interface {
	IncGatewayRequest(method, code string)
}

// MetricsInterceptor counts gateway calls by method and status code.
type MetricsInterceptor struct {
	collector GatewayMetricsCollector
}

// NewMetricsInterceptor creates a metrics interceptor. A nil collector records nothing.
func NewMetricsInterceptor(collector GatewayMetricsCollector) *MetricsInterceptor {
	return &MetricsInterceptor{collector: collector}
}

// UnaryServerInterceptor returns a gRPC unary server interceptor for call metrics.
func (m *MetricsInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if m.collector != nil {
			m.collector.IncGatewayRequest(path.Base(info.FullMethod), status.Code(err).String())
		}
		return resp, err
	}
}
