// Package shutdown coordinates the orderly stop of a junction process:
// servers first, then listeners, then clients, then cleanup functions.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod is the default maximum time to wait for graceful shutdown.
const DefaultGracePeriod = 30 * time.Second

// ErrGraceExceeded is returned when a phase did not finish within the grace period.
var ErrGraceExceeded = errors.New("shutdown grace period exceeded")

// Config configures graceful shutdown behavior.
type Config struct {
	// GracePeriod bounds the whole shutdown. Default is 30 seconds.
	GracePeriod time.Duration

	// Logger receives phase progress. Nil uses slog.Default.
	Logger *slog.Logger

	// OnShutdownStart is called when shutdown begins.
	OnShutdownStart func()

	// OnShutdownComplete is called when shutdown completes.
	OnShutdownComplete func(err error)
}

// DefaultConfig returns the shutdown defaults.
func DefaultConfig() *Config {
	return &Config{GracePeriod: DefaultGracePeriod}
}

// Closer is anything the coordinator can close: servers, listeners, clients.
type Closer interface {
	Close() error
}

// CloseFunc adapts a function to Closer.
type CloseFunc func() error

// Close calls f.
func (f CloseFunc) Close() error { return f() }

type phase struct {
	name    string
	closers []Closer
}

// Coordinator coordinates shutdown of all registered resources.
type Coordinator struct {
	config *Config
	logger *slog.Logger

	mu             sync.Mutex
	servers        []Closer
	listeners      []Closer
	clients        []Closer
	cleanupFuncs   []func() error
	isShuttingDown bool

	shutdownOnce sync.Once
	err          error
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(config *Config) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{config: config, logger: logger}
}

// RegisterServer registers a server. Servers stop first, concurrently.
func (c *Coordinator) RegisterServer(server Closer) {
	c.register(&c.servers, server)
}

// RegisterListener registers a listener, closed after the servers.
func (c *Coordinator) RegisterListener(listener Closer) {
	c.register(&c.listeners, listener)
}

// RegisterClient registers a client, closed after servers and listeners.
func (c *Coordinator) RegisterClient(client Closer) {
	c.register(&c.clients, client)
}

// RegisterCleanupFunc registers a function run last, in registration order.
func (c *Coordinator) RegisterCleanupFunc(fn func() error) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isShuttingDown {
		c.cleanupFuncs = append(c.cleanupFuncs, fn)
	}
}

func (c *Coordinator) register(list *[]Closer, closer Closer) {
	if closer == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isShuttingDown {
		*list = append(*list, closer)
	}
}

// ShuttingDown reports whether Shutdown has begun.
func (c *Coordinator) ShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isShuttingDown
}

// Shutdown stops every registered resource once. Later calls return the
// first call's result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.isShuttingDown = true
		phases := []phase{
			{name: "servers", closers: c.servers},
			{name: "listeners", closers: c.listeners},
			{name: "clients", closers: c.clients},
		}
		cleanup := c.cleanupFuncs
		c.mu.Unlock()

		if c.config.OnShutdownStart != nil {
			c.config.OnShutdownStart()
		}

		graceCtx, cancel := context.WithTimeout(ctx, c.config.GracePeriod)
		defer cancel()

		c.logger.Info("starting graceful shutdown", "grace_period", c.config.GracePeriod)

		var errs []error
		for _, p := range phases {
			if err := c.runPhase(graceCtx, p); err != nil {
				errs = append(errs, err)
			}
		}
		for _, fn := range cleanup {
			if err := fn(); err != nil {
				errs = append(errs, fmt.Errorf("cleanup: %w", err))
			}
		}

		c.err = errors.Join(errs...)
		if c.err != nil {
			c.logger.Error("shutdown finished with errors", "error", c.err)
		} else {
			c.logger.Info("graceful shutdown completed")
		}

		if c.config.OnShutdownComplete != nil {
			c.config.OnShutdownComplete(c.err)
		}
	})
	return c.err
}

// runPhase closes a phase's resources concurrently and waits for them, or
// for ctx. Closers still running when ctx ends are abandoned.
func (c *Coordinator) runPhase(ctx context.Context, p phase) error {
	if len(p.closers) == 0 {
		return nil
	}
	c.logger.Debug("shutdown phase", "phase", p.name, "resources", len(p.closers))

	var g errgroup.Group
	var mu sync.Mutex
	var errs []error
	for _, closer := range p.closers {
		g.Go(func() error {
			if err := closer.Close(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close %s: %w", p.name, err))
				mu.Unlock()
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		mu.Lock()
		defer mu.Unlock()
		return errors.Join(errs...)
	case <-ctx.Done():
		c.logger.Warn("shutdown phase timed out", "phase", p.name)
		return fmt.Errorf("%s: %w", p.name, ErrGraceExceeded)
	}
}
