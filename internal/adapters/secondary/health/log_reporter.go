// Package health provides health reporters and checkers for the process's
// external dependencies.
package health

import (
	"context"
	"log/slog"

	"github.com/sufield/junction/internal/core/ports"
)

// LogHealthReporter reports health results through structured logging.
// Healthy results log at Debug so steady state stays quiet.
type LogHealthReporter struct {
	logger *slog.Logger
}

// NewLogHealthReporter creates a new logging health reporter
func NewLogHealthReporter(logger *slog.Logger) *LogHealthReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHealthReporter{logger: logger}
}

// ReportHealth reports a health check result via logging
func (r *LogHealthReporter) ReportHealth(result ports.HealthResult) error {
	attrs := []slog.Attr{
		slog.String("component", result.Component),
		slog.String("status", string(result.Status)),
		slog.Duration("response_time", result.ResponseTime),
	}
	if result.Message != "" {
		attrs = append(attrs, slog.String("message", result.Message))
	}

	switch result.Status {
	case ports.HealthStatusHealthy:
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Health check passed", attrs...)
	case ports.HealthStatusUnhealthy:
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "Health check failed", attrs...)
	default:
		r.logger.LogAttrs(context.Background(), slog.LevelError, "Health check status unknown", attrs...)
	}
	return nil
}

// ReportOverallHealth reports the overall process health
func (r *LogHealthReporter) ReportOverallHealth(results map[string]ports.HealthResult) error {
	if len(results) == 0 {
		return nil
	}

	healthy, unhealthy := 0, 0
	for _, result := range results {
		if result.Status == ports.HealthStatusHealthy {
			healthy++
		} else {
			unhealthy++
		}
	}

	attrs := []slog.Attr{
		slog.Int("total_components", len(results)),
		slog.Int("healthy", healthy),
		slog.Int("unhealthy", unhealthy),
	}
	if unhealthy > 0 {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "Process health degraded", attrs...)
		return nil
	}
	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Process healthy", attrs...)
	return nil
}
