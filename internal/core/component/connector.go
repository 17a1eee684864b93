package component

import (
	"context"
	"slices"
	"sync"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Endpoint is one side of a connection as a connector sees it: a local port,
// or a stub standing in for a port in another process.
type Endpoint interface {
	URI() domain.PortURI
	// Remote reports whether the endpoint lives in another process.
	Remote() bool
	// Accept delivers a call made by caller to the endpoint's owner.
	Accept(ctx context.Context, caller domain.PortURI, req domain.Request) (domain.Response, error)
	// ObeyConnection binds the endpoint to c at sender's request. It never
	// forwards the request back, which ends the two-hop handshake.
	ObeyConnection(ctx context.Context, sender domain.PortURI, c Connector) error
	// ObeyDisconnection unbinds the endpoint at sender's request.
	ObeyDisconnection(ctx context.Context, sender domain.PortURI) error
}

// Connector mediates exactly one connection between an offering and a
// requiring endpoint. It is connected exactly when both handles are set.
type Connector interface {
	Kind() domain.ConnectorKind
	Spec() domain.ConnectorSpec
	// Supports reports whether ports of kind may be joined by this connector.
	Supports(kind domain.PortKind) bool
	// Bind records both handles. Binding a connected connector is a contract violation.
	Bind(offering, requiring Endpoint) error
	Connected() bool
	Offering() Endpoint
	Requiring() Endpoint
	// Peer returns the endpoint opposite to uri.
	Peer(uri domain.PortURI) (Endpoint, bool)
	// Disconnect sends obey-disconnection to the side opposite to initiator,
	// then clears both handles.
	Disconnect(ctx context.Context, initiator domain.PortURI) error
	// Release clears both handles without telling either side.
	Release()
}

// BaseConnector implements the binding bookkeeping every connector shares.
// Custom connector kinds embed it and add their own call surfaces.
type BaseConnector struct {
	spec  domain.ConnectorSpec
	kinds []domain.PortKind

	mu        sync.Mutex
	offering  Endpoint
	requiring Endpoint
}

// NewBaseConnector returns a BaseConnector for spec joining ports of the given
// kinds. With no kinds the connector accepts any port.
func NewBaseConnector(spec domain.ConnectorSpec, kinds ...domain.PortKind) *BaseConnector {
	return &BaseConnector{spec: spec.Clone(), kinds: kinds}
}

func (c *BaseConnector) Kind() domain.ConnectorKind { return c.spec.Kind }

func (c *BaseConnector) Spec() domain.ConnectorSpec { return c.spec.Clone() }

func (c *BaseConnector) Supports(kind domain.PortKind) bool {
	return len(c.kinds) == 0 || slices.Contains(c.kinds, kind)
}

func (c *BaseConnector) Bind(offering, requiring Endpoint) error {
	if offering == nil || requiring == nil {
		return errors.Violationf("connector %s needs two endpoints", c.spec.Kind)
	}
	if offering.URI() == requiring.URI() {
		return errors.Violationf("port %q cannot be connected to itself", offering.URI())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offering != nil || c.requiring != nil {
		return errors.Violationf("connector %s is already connected", c.spec.Kind)
	}
	c.offering, c.requiring = offering, requiring
	return nil
}

func (c *BaseConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offering != nil && c.requiring != nil
}

func (c *BaseConnector) Offering() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offering
}

func (c *BaseConnector) Requiring() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requiring
}

func (c *BaseConnector) Peer(uri domain.PortURI) (Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offering == nil || c.requiring == nil {
		return nil, false
	}
	switch uri {
	case c.offering.URI():
		return c.requiring, true
	case c.requiring.URI():
		return c.offering, true
	default:
		return nil, false
	}
}

func (c *BaseConnector) Disconnect(ctx context.Context, initiator domain.PortURI) error {
	peer, ok := c.Peer(initiator)
	if !ok {
		if !c.Connected() {
			return errors.Violationf("connector %s is not connected", c.spec.Kind)
		}
		return errors.Violationf("port %q is not an end of this %s connector", initiator, c.spec.Kind)
	}

	err := peer.ObeyDisconnection(ctx, initiator)
	c.Release()
	return err
}

func (c *BaseConnector) Release() {
	c.mu.Lock()
	c.offering, c.requiring = nil, nil
	c.mu.Unlock()
}

// Forward delivers req, made by from, to the endpoint opposite to from.
func (c *BaseConnector) Forward(ctx context.Context, from domain.PortURI, req domain.Request) (domain.Response, error) {
	peer, ok := c.Peer(from)
	if !ok {
		return domain.Response{}, errors.Violationf("connector %s cannot route a call from %q", c.spec.Kind, from)
	}
	return peer.Accept(ctx, from, req)
}

// Caller is implemented by connectors that carry requiring-to-offering calls.
type Caller interface {
	Call(ctx context.Context, req domain.Request) (domain.Response, error)
}

// Pusher is implemented by connectors that carry offering-to-requiring deliveries.
type Pusher interface {
	Push(ctx context.Context, req domain.Request) error
}

// Router is implemented by connectors serving symmetric peers. Each call goes
// through a proxy that knows which peer made it.
type Router interface {
	Proxy(caller domain.PortURI) Invoker
}

// Invoker performs one routed call.
type Invoker interface {
	Invoke(ctx context.Context, req domain.Request) (domain.Response, error)
}

// ForwardingConnector carries calls from an outbound port to an inbound port.
type ForwardingConnector struct {
	*BaseConnector
}

// NewForwardingConnector is the constructor registered for domain.ConnectorForwarding.
func NewForwardingConnector(spec domain.ConnectorSpec) (Connector, error) {
	return &ForwardingConnector{
		BaseConnector: NewBaseConnector(spec, domain.PortOutbound, domain.PortInbound),
	}, nil
}

// Call forwards req from the requiring side to the offering side.
func (c *ForwardingConnector) Call(ctx context.Context, req domain.Request) (domain.Response, error) {
	requiring := c.Requiring()
	if requiring == nil {
		return domain.Response{}, errors.Violationf("connector %s is not connected", c.Kind())
	}
	return c.Forward(ctx, requiring.URI(), req)
}

// DataConnector joins data ports: pulls travel from the requiring side to the
// offering side, pushes travel the other way.
type DataConnector struct {
	*BaseConnector
}

// NewDataConnector is the constructor registered for domain.ConnectorData.
func NewDataConnector(spec domain.ConnectorSpec) (Connector, error) {
	return &DataConnector{
		BaseConnector: NewBaseConnector(spec, domain.PortDataOutbound, domain.PortDataInbound),
	}, nil
}

// Call carries a pull request to the offering side.
func (c *DataConnector) Call(ctx context.Context, req domain.Request) (domain.Response, error) {
	requiring := c.Requiring()
	if requiring == nil {
		return domain.Response{}, errors.Violationf("connector %s is not connected", c.Kind())
	}
	return c.Forward(ctx, requiring.URI(), req)
}

// Push carries a provider-driven delivery to the requiring side.
func (c *DataConnector) Push(ctx context.Context, req domain.Request) error {
	offering := c.Offering()
	if offering == nil {
		return errors.Violationf("connector %s is not connected", c.Kind())
	}
	_, err := c.Forward(ctx, offering.URI(), req)
	return err
}

// TwoWayConnector joins two two-way ports. A single instance serves both
// directions: each call carries the caller's URI and is sent to the other peer.
type TwoWayConnector struct {
	*BaseConnector
}

// NewTwoWayConnector is the constructor registered for domain.ConnectorTwoWay.
func NewTwoWayConnector(spec domain.ConnectorSpec) (Connector, error) {
	return &TwoWayConnector{
		BaseConnector: NewBaseConnector(spec, domain.PortTwoWay),
	}, nil
}

// Proxy returns an Invoker that routes calls made by caller.
func (c *TwoWayConnector) Proxy(caller domain.PortURI) Invoker {
	return &twoWayProxy{connector: c, caller: caller}
}

type twoWayProxy struct {
	connector *TwoWayConnector
	caller    domain.PortURI
}

// Invoke compares the stored caller URI with the connector's two peers and
// forwards to the one that did not make the call.
func (p *twoWayProxy) Invoke(ctx context.Context, req domain.Request) (domain.Response, error) {
	c := p.connector
	c.mu.Lock()
	offering, requiring := c.offering, c.requiring
	c.mu.Unlock()

	if offering == nil || requiring == nil {
		return domain.Response{}, errors.Violationf("connector %s is not connected", c.Kind())
	}

	var target Endpoint
	switch p.caller {
	case offering.URI():
		target = requiring
	case requiring.URI():
		target = offering
	default:
		return domain.Response{}, errors.Violationf("caller %q is not a peer of this two-way connector", p.caller)
	}
	return target.Accept(ctx, p.caller, req)
}
