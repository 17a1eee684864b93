// Package services contains the core services that sit above the component
// model. HealthMonitor aggregates probes of the process's dependencies.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sufield/junction/internal/core/ports"
)

// DefaultCheckTimeout bounds a single probe when no timeout is configured.
const DefaultCheckTimeout = 5 * time.Second

// HealthMonitor runs registered health checkers and keeps the latest result
// per component.
type HealthMonitor struct {
	mu        sync.RWMutex
	checkers  map[string]ports.HealthChecker
	results   map[string]ports.HealthResult
	reporters []ports.HealthReporter
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHealthMonitor creates a monitor. A zero timeout means DefaultCheckTimeout.
func NewHealthMonitor(timeout time.Duration, logger *slog.Logger) *HealthMonitor {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		checkers: make(map[string]ports.HealthChecker),
		results:  make(map[string]ports.HealthResult),
		timeout:  timeout,
		logger:   logger,
	}
}

// RegisterChecker adds a checker. Component names must be unique.
func (h *HealthMonitor) RegisterChecker(checker ports.HealthChecker) error {
	if checker == nil {
		return fmt.Errorf("health checker cannot be nil")
	}
	name := checker.Component()
	if name == "" {
		return fmt.Errorf("health checker must have a component name")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.checkers[name]; exists {
		return fmt.Errorf("health checker for component %s already registered", name)
	}
	h.checkers[name] = checker
	h.logger.Debug("Health checker registered", "component", name)
	return nil
}

// RegisterReporter adds a reporter that sees every round of results.
func (h *HealthMonitor) RegisterReporter(reporter ports.HealthReporter) error {
	if reporter == nil {
		return fmt.Errorf("health reporter cannot be nil")
	}
	h.mu.Lock()
	h.reporters = append(h.reporters, reporter)
	h.mu.Unlock()
	return nil
}

// CheckAll probes every component concurrently, each bounded by the monitor
// timeout, and returns the results keyed by component.
func (h *HealthMonitor) CheckAll(ctx context.Context) map[string]ports.HealthResult {
	h.mu.RLock()
	checkers := make([]ports.HealthChecker, 0, len(h.checkers))
	for _, c := range h.checkers {
		checkers = append(checkers, c)
	}
	h.mu.RUnlock()

	results := make([]ports.HealthResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = h.probe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]ports.HealthResult, len(results))
	for _, r := range results {
		out[r.Component] = r
	}

	h.mu.Lock()
	for name, r := range out {
		h.results[name] = r
	}
	reporters := append([]ports.HealthReporter(nil), h.reporters...)
	h.mu.Unlock()

	for _, reporter := range reporters {
		for _, r := range results {
			if err := reporter.ReportHealth(r); err != nil {
				h.logger.Error("Failed to report health result", "component", r.Component, "error", err)
			}
		}
		if err := reporter.ReportOverallHealth(out); err != nil {
			h.logger.Error("Failed to report overall health", "error", err)
		}
	}
	return out
}

func (h *HealthMonitor) probe(ctx context.Context, c ports.HealthChecker) ports.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.CheckHealth(ctx)
	result := ports.HealthResult{
		Component:    c.Component(),
		Status:       ports.HealthStatusHealthy,
		CheckedAt:    start,
		ResponseTime: time.Since(start),
	}
	if err != nil {
		result.Status = ports.HealthStatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// Check probes every component and returns an error naming the unhealthy
// ones. It fits transport.HealthFunc.
func (h *HealthMonitor) Check(ctx context.Context) error {
	results := h.CheckAll(ctx)
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if r := results[name]; r.Status != ports.HealthStatusHealthy {
			errs = append(errs, fmt.Errorf("%s: %s", name, r.Message))
		}
	}
	return errors.Join(errs...)
}

// Results returns a copy of the latest result per component.
func (h *HealthMonitor) Results() map[string]ports.HealthResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]ports.HealthResult, len(h.results))
	for name, r := range h.results {
		out[name] = r
	}
	return out
}

// OverallHealth is healthy only when every component last probed healthy.
func (h *HealthMonitor) OverallHealth() ports.HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.results) == 0 {
		return ports.HealthStatusUnknown
	}
	for _, r := range h.results {
		if r.Status != ports.HealthStatusHealthy {
			return ports.HealthStatusUnhealthy
		}
	}
	return ports.HealthStatusHealthy
}

// Run probes every interval until ctx is done. It returns nil on cancellation.
func (h *HealthMonitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("health monitoring interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("Starting health monitoring", "interval", interval)
	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			h.logger.Debug("Health monitoring stopped")
			return nil
		}
	}
}
