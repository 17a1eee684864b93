package component

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/core/registry"
)

// Node is the per-process host of components. It owns the local registry and
// the connector factory, and runs the connection protocol on behalf of its
// ports. Construct one per process and pass it to whatever needs it.
type Node struct {
	id          string
	registry    *registry.Local[Port]
	factory     *ConnectorFactory
	distributed bool
	location    domain.Location
	resolver    ports.PeerResolver
	linker      ports.PeerLinker
	publisher   ports.LocationPublisher
	metrics     ports.PortMetrics
	logger      *slog.Logger
}

// Option configures a Node.
type Option func(*Node)

// WithID sets the node identifier used in logs.
func WithID(id string) Option {
	return func(n *Node) { n.id = id }
}

// WithDistributed marks the deployment as spanning several processes.
// A distributed node needs a location, a resolver and a linker.
func WithDistributed(distributed bool) Option {
	return func(n *Node) { n.distributed = distributed }
}

// WithLocation sets the address at which this node's gateway is reachable.
func WithLocation(loc domain.Location) Option {
	return func(n *Node) { n.location = loc }
}

// WithResolver sets the resolver consulted on local registry misses.
func WithResolver(r ports.PeerResolver) Option {
	return func(n *Node) { n.resolver = r }
}

// WithLinker sets the linker used to reach remote nodes.
func WithLinker(l ports.PeerLinker) Option {
	return func(n *Node) { n.linker = l }
}

// WithPublisher sets where published ports are advertised.
func WithPublisher(p ports.LocationPublisher) Option {
	return func(n *Node) { n.publisher = p }
}

// WithFactory replaces the default connector factory.
func WithFactory(f *ConnectorFactory) Option {
	return func(n *Node) { n.factory = f }
}

// WithLogger sets the node logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) { n.logger = l }
}

// WithMetrics sets the connection metrics reporter.
func WithMetrics(m ports.PortMetrics) Option {
	return func(n *Node) { n.metrics = m }
}

// NewNode creates a node.
func NewNode(opts ...Option) (*Node, error) {
	n := &Node{
		registry: registry.NewLocal[Port](),
		factory:  NewConnectorFactory(),
		metrics:  ports.NoopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.id == "" {
		n.id = uuid.NewString()
	}
	if n.factory == nil || n.metrics == nil || n.logger == nil {
		return nil, errors.NewDomainError(errors.ErrMisconfigured, fmt.Errorf("nil factory, metrics or logger"))
	}
	if n.distributed {
		switch {
		case n.location.IsZero():
			return nil, errors.NewDomainError(errors.ErrMisconfigured, fmt.Errorf("distributed node needs a gateway location"))
		case n.resolver == nil:
			return nil, errors.NewDomainError(errors.ErrMisconfigured, fmt.Errorf("distributed node needs a peer resolver"))
		case n.linker == nil:
			return nil, errors.NewDomainError(errors.ErrMisconfigured, fmt.Errorf("distributed node needs a peer linker"))
		}
	}
	n.logger = n.logger.With("node", n.id)
	return n, nil
}

func (n *Node) ID() string { return n.id }

func (n *Node) Distributed() bool { return n.distributed }

func (n *Node) Location() domain.Location { return n.location }

func (n *Node) Factory() *ConnectorFactory { return n.factory }

// Lookup returns the port published under uri in this process.
func (n *Node) Lookup(uri domain.PortURI) (Port, bool) {
	return n.registry.Lookup(uri)
}

// Published lists the URIs published in this process.
func (n *Node) Published() []domain.PortURI {
	return n.registry.URIs()
}

// Publish makes p reachable under its URI. In a distributed deployment the
// URI is also advertised with this node's location.
func (n *Node) Publish(ctx context.Context, p Port) error {
	if p.Owner() == nil || p.Owner().node != n {
		return errors.Violationf("port %q belongs to another node", p.URI())
	}
	b := p.base()
	if err := b.markPublished(); err != nil {
		return err
	}
	if err := n.registry.Publish(p.URI(), p); err != nil {
		_ = b.markUnpublished()
		return err
	}
	if n.distributed && n.publisher != nil {
		if err := n.publisher.PublishLocation(ctx, p.URI(), n.location); err != nil {
			_ = n.registry.Unpublish(p.URI())
			_ = b.markUnpublished()
			return fmt.Errorf("advertise %q: %w", p.URI(), err)
		}
	}
	n.logger.Debug("port published", "port", p.URI(), "kind", p.Kind())
	return nil
}

// Unpublish withdraws p. A connected port must be disconnected first.
func (n *Node) Unpublish(ctx context.Context, p Port) error {
	if err := p.base().markUnpublished(); err != nil {
		return err
	}
	if err := n.registry.Unpublish(p.URI()); err != nil {
		return err
	}
	if n.distributed && n.publisher != nil {
		if err := n.publisher.WithdrawLocation(ctx, p.URI()); err != nil {
			n.logger.Warn("failed to withdraw port location", "port", p.URI(), "error", err)
			return fmt.Errorf("withdraw %q: %w", p.URI(), err)
		}
	}
	n.logger.Debug("port unpublished", "port", p.URI())
	return nil
}

// Connect joins the requiring port to the offering port through a new
// connector built from spec. The offering port is looked up locally first;
// a miss is resolved through the directory when the deployment is
// distributed and is a configuration error otherwise. Connecting a port that
// is connected, or is being connected, is a contract violation that leaves
// the port untouched.
func (n *Node) Connect(ctx context.Context, requiring, offering domain.PortURI, spec domain.ConnectorSpec) (err error) {
	port, ok := n.registry.Lookup(requiring)
	if !ok {
		return errors.Violationf("requiring port %q is not published", requiring)
	}
	if !port.Kind().Requiring() {
		return errors.Violationf("%s port %q cannot initiate a connection", port.Kind(), requiring)
	}
	b := port.base()
	if err := b.beginConnect(); err != nil {
		return err
	}
	defer b.endConnect()

	remote := false
	defer func() {
		n.metrics.RecordConnect(port.Kind(), remote, err)
	}()

	var c Connector
	for retried := false; ; retried = true {
		c, remote, err = n.handshake(ctx, port, offering, spec)
		if err == nil {
			break
		}
		if retried || !remote || !n.forgetStale(offering, err) {
			return err
		}
		n.logger.Info("cached location is stale, resolving again", "port", offering, "error", err)
	}
	if err := b.bind(c, remote); err != nil {
		// The port was bound by a peer while the handshake ran.
		_ = c.Disconnect(ctx, requiring)
		return err
	}

	n.logger.Info("ports connected",
		"requiring", requiring,
		"offering", offering,
		"connector", c.Kind(),
		"remote", remote)
	return nil
}

// handshake builds a connector from spec, binds it to port and the peer
// found under offering, and has the peer bind its side. remote reports
// whether the failure, if any, happened on a remote leg.
func (n *Node) handshake(ctx context.Context, port Port, offering domain.PortURI, spec domain.ConnectorSpec) (Connector, bool, error) {
	c, err := n.factory.New(spec)
	if err != nil {
		return nil, false, err
	}
	if !c.Supports(port.Kind()) {
		return nil, false, errors.Violationf("connector %s cannot join %s port %q", c.Kind(), port.Kind(), port.URI())
	}

	peer, remote, err := n.resolvePeer(ctx, port, offering)
	if err != nil {
		return nil, remote, err
	}
	if err := c.Bind(peer, port); err != nil {
		return nil, false, err
	}
	if err := peer.ObeyConnection(ctx, port.URI(), c); err != nil {
		c.Release()
		return nil, remote, err
	}
	return c, remote, nil
}

// forgetStale drops a cached location for uri when err shows the remote
// process no longer answers for it. It reports whether a retry can help.
func (n *Node) forgetStale(uri domain.PortURI, err error) bool {
	cache, ok := n.resolver.(ports.ResolverCache)
	if !ok {
		return false
	}
	switch errors.CodeOf(err) {
	case errors.CodeNotFound, errors.CodeTransport:
		cache.Forget(uri)
		return true
	default:
		return false
	}
}

// resolvePeer finds the endpoint for uri, locally or through the directory.
func (n *Node) resolvePeer(ctx context.Context, port Port, uri domain.PortURI) (Endpoint, bool, error) {
	if local, ok := n.registry.Lookup(uri); ok {
		if err := compatible(port, local); err != nil {
			return nil, false, err
		}
		return local, false, nil
	}
	if !n.distributed {
		return nil, false, errors.NewDomainError(errors.ErrMisconfigured,
			fmt.Errorf("port %q is not published in this process and the deployment is not distributed", uri))
	}

	loc, found, err := n.resolver.Resolve(ctx, uri)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %q: %w", uri, err)
	}
	if !found {
		return nil, false, errors.NewDomainError(errors.ErrNotFound, fmt.Errorf("port %q is not published in any process", uri))
	}
	peer, err := n.linker.Link(ctx, loc)
	if err != nil {
		return nil, true, fmt.Errorf("link to %s: %w", loc, err)
	}
	n.logger.Debug("resolved remote port", "port", uri, "location", loc)
	return n.remoteEndpoint(uri, loc, peer), true, nil
}

// compatible checks a local pair before any connector is bound: the kinds
// must pair up and the offering side must implement what the requiring side
// needs.
func compatible(requiring, offering Port) error {
	if offering.Kind() != requiring.Kind().Peer() {
		return errors.Violationf("%s port %q cannot connect to %s port %q",
			requiring.Kind(), requiring.URI(), offering.Kind(), offering.URI())
	}
	req, off := requiring.Interfaces(), offering.Interfaces()
	if len(req) != len(off) {
		return errors.Violationf("ports %q and %q implement different interface sets", requiring.URI(), offering.URI())
	}
	for i := range req {
		if req[i].ID != off[i].ID {
			return errors.Violationf("port %q requires %s but %q implements %s",
				requiring.URI(), req[i].ID, offering.URI(), off[i].ID)
		}
	}
	for _, m := range req[0].Methods {
		if !off[0].Declares(m) {
			return errors.Violationf("port %q does not implement %s.%s", offering.URI(), off[0].ID, m)
		}
	}
	return nil
}

// compatibleRemote applies the checks of compatible to a sender that lives
// in another process and is known only through its obey message.
func compatibleRemote(msg ports.ObeyConnection, target Port) error {
	if target.Kind() != msg.SenderKind.Peer() {
		return errors.Violationf("%s port %q cannot connect to %s port %q",
			msg.SenderKind, msg.Sender, target.Kind(), target.URI())
	}
	iface := target.Interface()
	if iface.ID != msg.Interface {
		return errors.Violationf("port %q requires %s but %q implements %s",
			msg.Sender, msg.Interface, target.URI(), iface.ID)
	}
	for _, m := range msg.Methods {
		if !iface.Declares(m) {
			return errors.Violationf("port %q does not implement %s.%s", target.URI(), iface.ID, m)
		}
	}
	return nil
}

// Disconnect tears down the connection of a requiring port. The local side
// is cleared even when the peer cannot be told.
func (n *Node) Disconnect(ctx context.Context, requiring domain.PortURI) error {
	port, ok := n.registry.Lookup(requiring)
	if !ok {
		return errors.Violationf("requiring port %q is not published", requiring)
	}
	if !port.Kind().Requiring() {
		return errors.Violationf("%s port %q cannot initiate a disconnection", port.Kind(), requiring)
	}
	return n.disconnect(ctx, port)
}

func (n *Node) disconnect(ctx context.Context, port Port) error {
	c, err := port.base().unbind()
	if err != nil {
		return err
	}
	n.metrics.RecordDisconnect(port.Kind())

	if err := c.Disconnect(ctx, port.URI()); err != nil {
		n.logger.Warn("peer did not acknowledge disconnection", "port", port.URI(), "error", err)
		return err
	}
	n.logger.Info("port disconnected", "port", port.URI(), "connector", c.Kind())
	return nil
}

// ObeyConnection is the remote leg of Connect. It recreates the connector
// from its spec, binds it to the target and a stub for the sender, and binds
// the target without forwarding anything back.
func (n *Node) ObeyConnection(ctx context.Context, msg ports.ObeyConnection) error {
	target, ok := n.registry.Lookup(msg.Target)
	if !ok {
		return errors.NewDomainError(errors.ErrNotFound, fmt.Errorf("port %q is not published here", msg.Target))
	}
	if err := compatibleRemote(msg, target); err != nil {
		return err
	}
	if n.linker == nil {
		return errors.NewDomainError(errors.ErrMisconfigured, fmt.Errorf("node %s cannot reach remote peers", n.id))
	}
	loc, err := domain.ParseLocation(msg.SenderLocation)
	if err != nil {
		return errors.Protocolf("sender location: %v", err)
	}
	sender, err := domain.NewPortURI(string(msg.Sender))
	if err != nil {
		return errors.Protocolf("sender: %v", err)
	}

	c, err := n.factory.New(msg.Spec)
	if err != nil {
		return err
	}
	peer, err := n.linker.Link(ctx, loc)
	if err != nil {
		return fmt.Errorf("link to %s: %w", loc, err)
	}
	if err := c.Bind(target, n.remoteEndpoint(sender, loc, peer)); err != nil {
		return err
	}
	if err := target.ObeyConnection(ctx, sender, c); err != nil {
		c.Release()
		return err
	}
	n.metrics.RecordConnect(target.Kind(), true, nil)
	n.logger.Info("remote port connected",
		"port", msg.Target,
		"sender", sender,
		"location", loc,
		"connector", c.Kind())
	return nil
}

// ObeyDisconnection is the remote leg of Disconnect.
func (n *Node) ObeyDisconnection(ctx context.Context, target, sender domain.PortURI) error {
	port, ok := n.registry.Lookup(target)
	if !ok {
		return errors.NewDomainError(errors.ErrNotFound, fmt.Errorf("port %q is not published here", target))
	}
	if err := port.ObeyDisconnection(ctx, sender); err != nil {
		return err
	}
	n.metrics.RecordDisconnect(port.Kind())
	n.logger.Info("remote port disconnected", "port", target, "sender", sender)
	return nil
}

// Invoke delivers a call that arrived from a remote caller.
func (n *Node) Invoke(ctx context.Context, target, caller domain.PortURI, req domain.Request) (domain.Response, error) {
	port, ok := n.registry.Lookup(target)
	if !ok {
		return domain.Response{}, errors.NewDomainError(errors.ErrNotFound, fmt.Errorf("port %q is not published here", target))
	}
	c := port.Connector()
	if c == nil {
		return domain.Response{}, errors.Violationf("port %q is not connected", target)
	}
	if peer, ok := c.Peer(target); !ok || peer.URI() != caller {
		return domain.Response{}, errors.Violationf("port %q is not connected to %q", target, caller)
	}
	return port.Accept(ctx, caller, req)
}
