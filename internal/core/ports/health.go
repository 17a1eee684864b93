package ports

import (
	"context"
	"time"
)

// HealthStatus is the outcome of one health probe.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthResult records one probe of one component.
type HealthResult struct {
	Component    string        `json:"component"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
	ResponseTime time.Duration `json:"response_time"`
}

// HealthChecker probes a dependency of the process, such as the directory
// store or the directory service. A nil error means healthy.
type HealthChecker interface {
	Component() string
	CheckHealth(ctx context.Context) error
}

// HealthReporter receives the results of each monitoring round.
type HealthReporter interface {
	ReportHealth(result HealthResult) error
	ReportOverallHealth(results map[string]HealthResult) error
}
