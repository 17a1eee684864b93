// Package interceptors provides gRPC interceptors for the port gateway:
// structured logging, call metrics and request-id propagation.
package interceptors

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/sufield/junction/internal/adapters/logging"
)

const (
	defaultSlowThreshold = 500 * time.Millisecond
	debugSlowThreshold   = 100 * time.Millisecond
)

// LogAttrser is implemented by gateway messages that contribute fields to
// the request log line, such as the target and caller port URIs.
type LogAttrser interface {
	LogAttrs() []any
}

// LoggingConfig configures gateway call logging.
type LoggingConfig struct {
	// Logger instance. Nil uses a redacting wrapper around slog.Default.
	Logger *slog.Logger

	// LogRequests logs a line when a call is received.
	LogRequests bool

	// LogPayloads includes request and response messages in the logs.
	LogPayloads bool

	// SlowRequestThreshold raises completed calls slower than this to Warn.
	SlowRequestThreshold time.Duration

	// ExcludeMethods are full method names that are never logged.
	ExcludeMethods []string
}

// LoggingInterceptor logs gateway calls.
type LoggingInterceptor struct {
	config *LoggingConfig
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor.
func NewLoggingInterceptor(config *LoggingConfig) *LoggingInterceptor {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(logging.NewRedactorHandler(slog.Default().Handler()))
	}
	if config.SlowRequestThreshold == 0 {
		config.SlowRequestThreshold = defaultSlowThreshold
	}
	return &LoggingInterceptor{config: config, logger: logger}
}

// UnaryServerInterceptor returns a gRPC unary server interceptor for logging.
func (l *LoggingInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if slices.Contains(l.config.ExcludeMethods, info.FullMethod) {
			return handler(ctx, req)
		}

		start := time.Now()
		entry := l.baseEntry(ctx, info.FullMethod, req)

		if l.config.LogRequests {
			requestEntry := entry.With("event", "request_received")
			if l.config.LogPayloads {
				requestEntry = requestEntry.With("request_payload", req)
			}
			requestEntry.DebugContext(ctx, "gateway request received")
		}

		resp, err := handler(ctx, req)
		duration := time.Since(start)

		level := slog.LevelDebug
		switch {
		case err != nil:
			level = slog.LevelWarn
		case duration > l.config.SlowRequestThreshold:
			level = slog.LevelWarn
		}

		responseEntry := entry.With(
			"event", "request_completed",
			"duration_ms", duration.Milliseconds(),
			"success", err == nil,
		)
		if err != nil {
			st := status.Convert(err)
			responseEntry = responseEntry.With(
				"error_code", st.Code().String(),
				"error_message", st.Message(),
			)
		}
		if l.config.LogPayloads && err == nil {
			responseEntry = responseEntry.With("response_payload", resp)
		}
		responseEntry.Log(ctx, level, "gateway request completed")

		return resp, err
	}
}

func (l *LoggingInterceptor) baseEntry(ctx context.Context, method string, req interface{}) *slog.Logger {
	entry := l.logger.With("method", method)
	if requestID, ok := RequestIDFromContext(ctx); ok {
		entry = entry.With("request_id", requestID)
	}
	if node, ok := CallerNodeFromContext(ctx); ok {
		entry = entry.With("caller_node", node)
	}
	if a, ok := req.(LogAttrser); ok {
		entry = entry.With(a.LogAttrs()...)
	}
	return entry
}

// DefaultLoggingConfig returns the default gateway logging configuration.
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		LogRequests:          true,
		LogPayloads:          false,
		SlowRequestThreshold: defaultSlowThreshold,
	}
}

// NewDebugLoggingConfig logs payloads and uses a lower slow-call threshold.
func NewDebugLoggingConfig() *LoggingConfig {
	config := DefaultLoggingConfig()
	config.LogPayloads = true
	config.SlowRequestThreshold = debugSlowThreshold
	return config
}
