// Package app assembles a component node and the infrastructure it needs in
// a distributed deployment: a directory connection for publishing and
// resolving ports, a linker to reach other processes, and the gateway that
// serves this process's ports to them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/google/uuid"

	"github.com/sufield/junction/internal/adapters/interceptors"
	"github.com/sufield/junction/internal/adapters/secondary/transport"
	"github.com/sufield/junction/internal/core/component"
	"github.com/sufield/junction/internal/core/domain"
	domainerrors "github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/directory"
)

// ErrRuntimeCreationFailed is returned when the node or its infrastructure
// cannot be assembled.
var ErrRuntimeCreationFailed = errors.New("failed to create node runtime")

// Metrics is everything the runtime reports.
type Metrics interface {
	ports.PortMetrics
	interceptors.GatewayMetricsCollector
}

// Options tunes NewRuntime. The zero value is usable.
type Options struct {
	Logger     *slog.Logger
	Metrics    Metrics
	Connection *transport.ConnectionConfig
	// Listener overrides listening on NodeConfig.GatewayAddress.
	Listener net.Listener
}

// Runtime is a Node together with its distributed plumbing. For a
// non-distributed configuration only Node is set.
type Runtime struct {
	Node *component.Node

	directory *directory.Client
	linker    *transport.Linker
	gateway   *transport.Server
	listener  net.Listener
	logger    *slog.Logger
}

// NewRuntime builds the node described by cfg. In a distributed deployment it
// dials the directory and binds the gateway listener; Serve starts answering
// remote calls.
func NewRuntime(ctx context.Context, cfg ports.NodeConfig, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := nodeID(cfg)
	nodeOpts := []component.Option{component.WithID(id), component.WithLogger(logger)}
	if opts.Metrics != nil {
		nodeOpts = append(nodeOpts, component.WithMetrics(opts.Metrics))
	}

	if !cfg.Distributed {
		node, err := component.NewNode(nodeOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRuntimeCreationFailed, err)
		}
		return &Runtime{Node: node, logger: logger}, nil
	}

	if cfg.DirectoryAddress == "" {
		return nil, fmt.Errorf("%w: %w", ErrRuntimeCreationFailed,
			domainerrors.NewDomainError(domainerrors.ErrMisconfigured, fmt.Errorf("distributed node needs a directory address")))
	}

	r := &Runtime{logger: logger, listener: opts.Listener}
	if r.listener == nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", cfg.GatewayAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: listen on %s: %w", ErrRuntimeCreationFailed, cfg.GatewayAddress, err)
		}
		r.listener = ln
	}

	loc, err := advertiseLocation(cfg, r.listener)
	if err != nil {
		_ = r.listener.Close()
		return nil, fmt.Errorf("%w: %w", ErrRuntimeCreationFailed, err)
	}

	r.directory, err = directory.Dial(ctx, cfg.DirectoryAddress)
	if err != nil {
		_ = r.listener.Close()
		return nil, fmt.Errorf("%w: %w", ErrRuntimeCreationFailed, err)
	}

	var resolver ports.PeerResolver = r.directory
	if cfg.ResolverCacheSize > 0 {
		cached, err := directory.NewCachingResolver(r.directory, cfg.ResolverCacheSize)
		if err != nil {
			_ = r.closeInfra()
			return nil, fmt.Errorf("%w: %w", ErrRuntimeCreationFailed, err)
		}
		resolver = cached
	}

	connection := opts.Connection
	if connection == nil {
		connection = transport.DefaultConnectionConfig()
	}
	r.linker = transport.NewLinker(id, connection)

	nodeOpts = append(nodeOpts,
		component.WithDistributed(true),
		component.WithLocation(loc),
		component.WithResolver(resolver),
		component.WithPublisher(r.directory),
		component.WithLinker(r.linker),
	)
	node, err := component.NewNode(nodeOpts...)
	if err != nil {
		_ = r.closeInfra()
		return nil, fmt.Errorf("%w: %w", ErrRuntimeCreationFailed, err)
	}
	r.Node = node

	serverConfig := transport.ServerConfig{Logger: logger}
	if opts.Metrics != nil {
		serverConfig.Metrics = opts.Metrics
	}
	r.gateway = transport.NewServer(node, serverConfig)

	logger.Info("Node runtime ready",
		"node", node.ID(),
		"gateway", r.listener.Addr().String(),
		"advertise", loc.String(),
		"directory", cfg.DirectoryAddress)
	return r, nil
}

// nodeID is the configured ID, else the hostname, else a random UUID.
func nodeID(cfg ports.NodeConfig) string {
	if cfg.ID != "" {
		return cfg.ID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

// advertiseLocation prefers the configured location and falls back to the
// bound listener address, which resolves a ":0" gateway to its real port.
func advertiseLocation(cfg ports.NodeConfig, ln net.Listener) (domain.Location, error) {
	if !cfg.AdvertiseAddress.IsZero() {
		return cfg.AdvertiseAddress, nil
	}
	if loc := cfg.Advertise(); !loc.IsZero() && loc.Port() != 0 {
		return loc, nil
	}
	loc, err := domain.ParseLocation(ln.Addr().String())
	if err != nil {
		return domain.Location{}, domainerrors.NewDomainError(domainerrors.ErrMisconfigured,
			fmt.Errorf("cannot derive advertise address from %s: %w", ln.Addr(), err))
	}
	return loc, nil
}

// Distributed reports whether the runtime carries a gateway.
func (r *Runtime) Distributed() bool { return r.gateway != nil }

// GatewayAddr returns the bound gateway address, or nil when not distributed.
func (r *Runtime) GatewayAddr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Serve answers remote port calls until ctx is done. A non-distributed
// runtime just waits for ctx.
func (r *Runtime) Serve(ctx context.Context) error {
	if r.gateway == nil {
		<-ctx.Done()
		return nil
	}
	return r.gateway.Serve(ctx, r.listener)
}

// Close stops the gateway and releases the links and the directory
// connection. Components should be shut down first so their ports withdraw
// their directory entries.
func (r *Runtime) Close() error {
	if r.gateway != nil {
		r.gateway.Stop()
	}
	return r.closeInfra()
}

func (r *Runtime) closeInfra() error {
	var errs []error
	if r.linker != nil {
		errs = append(errs, r.linker.Close())
	}
	if r.directory != nil {
		errs = append(errs, r.directory.Close())
	}
	if r.listener != nil {
		if err := r.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
