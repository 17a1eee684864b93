package component

import (
	"context"
	"sync"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Port is a named, typed endpoint owned by a component.
type Port interface {
	Endpoint
	Kind() domain.PortKind
	Owner() *Component
	// Interface is the interface the port reports as implemented. Data ports
	// report their pull interface here.
	Interface() domain.Interface
	// Interfaces lists every interface the port implements.
	Interfaces() []domain.Interface
	State() domain.PortState
	Connected() bool
	// Connector returns the connector the port is bound to, or nil.
	Connector() Connector
	// PeerRemote reports whether the connected peer lives in another process.
	PeerRemote() bool

	base() *basePort
}

// basePort holds the state machine shared by every port kind:
//
//	unpublished -> disconnected -> connected -> disconnected -> unpublished -> destroyed
type basePort struct {
	uri   domain.PortURI
	kind  domain.PortKind
	owner *Component
	iface domain.Interface

	mu         sync.Mutex
	state      domain.PortState
	connector  Connector
	peerRemote bool
	connecting bool
}

func (p *basePort) init(uri domain.PortURI, kind domain.PortKind, owner *Component, iface domain.Interface) {
	p.uri, p.kind, p.owner, p.iface = uri, kind, owner, iface
	p.state = domain.StateUnpublished
}

func (p *basePort) base() *basePort { return p }

func (p *basePort) URI() domain.PortURI { return p.uri }

func (p *basePort) Remote() bool { return false }

func (p *basePort) Kind() domain.PortKind { return p.kind }

func (p *basePort) Owner() *Component { return p.owner }

func (p *basePort) Interface() domain.Interface { return p.iface }

func (p *basePort) Interfaces() []domain.Interface { return []domain.Interface{p.iface} }

func (p *basePort) State() domain.PortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *basePort) Connected() bool {
	return p.State() == domain.StateConnected
}

func (p *basePort) Connector() Connector {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connector
}

func (p *basePort) PeerRemote() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peerRemote
}

func (p *basePort) markPublished() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.StateUnpublished {
		return errors.Violationf("port %q cannot be published while %s", p.uri, p.state)
	}
	p.state = domain.StateDisconnected
	return nil
}

func (p *basePort) markUnpublished() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case domain.StateDisconnected:
		p.state = domain.StateUnpublished
		return nil
	case domain.StateConnected:
		return errors.Violationf("port %q must be disconnected before it is unpublished", p.uri)
	default:
		return errors.Violationf("port %q cannot be unpublished while %s", p.uri, p.state)
	}
}

func (p *basePort) markDestroyed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.StateUnpublished {
		return errors.Violationf("port %q must be unpublished before it is destroyed", p.uri)
	}
	p.state = domain.StateDestroyed
	return nil
}

// beginConnect reserves the port for one connect call. Connect is not
// reentrant: a second call while one is in flight, or on a connected port,
// is a contract violation and leaves the port untouched.
func (p *basePort) beginConnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.connecting:
		return errors.Violationf("port %q is already connecting", p.uri)
	case p.state == domain.StateConnected:
		return errors.Violationf("port %q is already connected", p.uri)
	case p.state != domain.StateDisconnected:
		return errors.Violationf("port %q cannot connect while %s", p.uri, p.state)
	}
	p.connecting = true
	return nil
}

func (p *basePort) endConnect() {
	p.mu.Lock()
	p.connecting = false
	p.mu.Unlock()
}

func (p *basePort) bind(c Connector, remote bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case domain.StateDisconnected:
	case domain.StateConnected:
		return errors.Violationf("port %q is already connected", p.uri)
	default:
		return errors.Violationf("port %q cannot connect while %s", p.uri, p.state)
	}
	p.connector = c
	p.peerRemote = remote
	p.state = domain.StateConnected
	return nil
}

func (p *basePort) unbind() (Connector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.StateConnected {
		return nil, errors.Violationf("port %q is not connected", p.uri)
	}
	c := p.connector
	p.connector = nil
	p.peerRemote = false
	p.state = domain.StateDisconnected
	return c, nil
}

// ObeyConnection binds the port to a connector created by its peer, or
// recreated from the peer's spec when the peer is remote.
func (p *basePort) ObeyConnection(_ context.Context, sender domain.PortURI, c Connector) error {
	if c == nil {
		return errors.Violationf("port %q asked to obey a nil connector", p.uri)
	}
	peer, ok := c.Peer(p.uri)
	if !ok || peer.URI() != sender {
		return errors.Violationf("connector does not join %q to %q", p.uri, sender)
	}
	if !c.Supports(p.kind) {
		return errors.Violationf("connector %s cannot join %s port %q", c.Kind(), p.kind, p.uri)
	}
	return p.bind(c, peer.Remote())
}

// ObeyDisconnection unbinds the port at its peer's request.
func (p *basePort) ObeyDisconnection(_ context.Context, sender domain.PortURI) error {
	c := p.Connector()
	if c == nil {
		return errors.Violationf("port %q is not connected", p.uri)
	}
	if peer, ok := c.Peer(p.uri); ok && peer.URI() != sender {
		return errors.Violationf("port %q is not connected to %q", p.uri, sender)
	}
	if _, err := p.unbind(); err != nil {
		return err
	}
	c.Release()
	return nil
}

// checkRequest verifies req targets iface and names one of its methods.
func checkRequest(uri domain.PortURI, iface domain.Interface, req domain.Request) error {
	if req.Interface != iface.ID {
		return errors.Protocolf("port %q implements %s, not %s", uri, iface.ID, req.Interface)
	}
	if !iface.Declares(req.Method) {
		return errors.Protocolf("interface %s has no method %q", iface.ID, req.Method)
	}
	return nil
}

// connectedConnector returns the port's connector or a contract violation.
func (p *basePort) connectedConnector() (Connector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.StateConnected || p.connector == nil {
		return nil, errors.Violationf("port %q is not connected", p.uri)
	}
	return p.connector, nil
}
