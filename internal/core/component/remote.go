package component

import (
	"context"
	"slices"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/ports"
)

// remoteEndpoint stands in for a port published by another process. Every
// operation on it becomes a message to that process's gateway.
type remoteEndpoint struct {
	uri  domain.PortURI
	loc  domain.Location
	peer ports.RemotePeer
	node *Node
}

func (n *Node) remoteEndpoint(uri domain.PortURI, loc domain.Location, peer ports.RemotePeer) *remoteEndpoint {
	return &remoteEndpoint{uri: uri, loc: loc, peer: peer, node: n}
}

func (e *remoteEndpoint) URI() domain.PortURI { return e.uri }

func (e *remoteEndpoint) Remote() bool { return true }

func (e *remoteEndpoint) Accept(ctx context.Context, caller domain.PortURI, req domain.Request) (domain.Response, error) {
	return e.peer.Invoke(ctx, e.uri, caller, req)
}

// ObeyConnection ships the connector's spec instead of the connector itself.
// The remote node rebuilds an equivalent connector from it.
func (e *remoteEndpoint) ObeyConnection(ctx context.Context, sender domain.PortURI, c Connector) error {
	msg := ports.ObeyConnection{
		Target:         e.uri,
		Sender:         sender,
		SenderLocation: e.node.location.String(),
		Spec:           c.Spec(),
	}
	if local, ok := c.Peer(e.uri); ok {
		if p, ok := local.(Port); ok {
			iface := p.Interface()
			msg.SenderKind = p.Kind()
			msg.Interface = iface.ID
			msg.Methods = slices.Clone(iface.Methods)
		}
	}
	return e.peer.ObeyConnection(ctx, msg)
}

func (e *remoteEndpoint) ObeyDisconnection(ctx context.Context, sender domain.PortURI) error {
	return e.peer.ObeyDisconnection(ctx, e.uri, sender)
}
