package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/sufield/junction/internal/adapters/metrics"
	"github.com/sufield/junction/internal/adapters/secondary/health"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/core/services"
	"github.com/sufield/junction/internal/shutdown"
	"github.com/sufield/junction/internal/transport"
)

// healthInterval is how often a serving process probes its dependencies.
const healthInterval = 30 * time.Second

// serviceRun carries what a serve command shares: metrics, health and
// orderly shutdown around one blocking service.
type serviceRun struct {
	cfg      *ports.Configuration
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.PrometheusMetrics
	monitor  *services.HealthMonitor
	shutdown *shutdown.Coordinator
}

func newServiceRun(cfg *ports.Configuration, logger *slog.Logger) *serviceRun {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	monitor := services.NewHealthMonitor(0, logger)
	_ = monitor.RegisterReporter(health.NewLogHealthReporter(logger))

	return &serviceRun{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.NewPrometheusMetrics(reg),
		monitor:  monitor,
		shutdown: shutdown.NewCoordinator(&shutdown.Config{
			GracePeriod: cfg.Shutdown.GracePeriod,
			Logger:      logger,
		}),
	}
}

// run blocks in serve until it returns or a termination signal arrives, then
// shuts everything registered with the coordinator down. The admin endpoint
// and health monitoring live exactly as long as serve.
func (r *serviceRun) run(ctx context.Context, serve func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if addr := r.cfg.Admin.Address; addr != "" {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("%w: admin listen on %s: %w", ErrRuntime, addr, err)
		}
		admin := transport.NewAdminServer(r.registry, r.monitor.Check, r.logger)
		r.shutdown.RegisterServer(admin)
		g.Go(func() error { return admin.Serve(gctx, ln) })
	}

	g.Go(func() error { return r.monitor.Run(gctx, healthInterval) })

	g.Go(func() error {
		// The service finishing on its own ends the run.
		defer cancel()
		return serve(gctx)
	})

	err := g.Wait()
	shutdownErr := r.shutdown.Shutdown(context.Background())
	if err != nil {
		return runtimeError(err)
	}
	return runtimeError(shutdownErr)
}
