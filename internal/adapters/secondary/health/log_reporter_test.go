package health

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/junction/internal/core/ports"
)

func TestLogHealthReporter_ReportHealth(t *testing.T) {
	tests := []struct {
		name          string
		result        ports.HealthResult
		shouldContain []string
	}{
		{
			name: "healthy component",
			result: ports.HealthResult{
				Status:       ports.HealthStatusHealthy,
				Component:    "directory-store",
				ResponseTime: 2 * time.Millisecond,
			},
			shouldContain: []string{"level=DEBUG", "Health check passed", "directory-store"},
		},
		{
			name: "unhealthy component",
			result: ports.HealthResult{
				Status:    ports.HealthStatusUnhealthy,
				Component: "directory-store",
				Message:   "connection refused",
			},
			shouldContain: []string{"level=WARN", "Health check failed", "connection refused"},
		},
		{
			name: "unknown status",
			result: ports.HealthResult{
				Status:    ports.HealthStatusUnknown,
				Component: "directory-store",
			},
			shouldContain: []string{"level=ERROR", "Health check status unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reporter := NewLogHealthReporter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

			require.NoError(t, reporter.ReportHealth(tt.result))
			for _, want := range tt.shouldContain {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestLogHealthReporter_ReportOverallHealth(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewLogHealthReporter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	require.NoError(t, reporter.ReportOverallHealth(nil))
	assert.Empty(t, buf.String())

	require.NoError(t, reporter.ReportOverallHealth(map[string]ports.HealthResult{
		"a": {Component: "a", Status: ports.HealthStatusHealthy},
		"b": {Component: "b", Status: ports.HealthStatusUnhealthy},
	}))
	assert.Contains(t, buf.String(), "Process health degraded")
	assert.Contains(t, buf.String(), "unhealthy=1")

	buf.Reset()
	require.NoError(t, reporter.ReportOverallHealth(map[string]ports.HealthResult{
		"a": {Component: "a", Status: ports.HealthStatusHealthy},
	}))
	assert.Contains(t, buf.String(), "Process healthy")
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("store", func(context.Context) error { return nil })
	assert.Equal(t, "store", ok.Component())
	assert.NoError(t, ok.CheckHealth(context.Background()))

	failing := NewPingChecker("store", func(context.Context) error { return errors.New("down") })
	assert.EqualError(t, failing.CheckHealth(context.Background()), "down")

	assert.Error(t, NewPingChecker("store", nil).CheckHealth(context.Background()))
}
