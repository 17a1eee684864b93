package ports

import (
	"context"

	"github.com/sufield/junction/internal/core/domain"
)

// PeerResolver maps a port URI that is absent from the local registry to the
// location of the process that published it.
type PeerResolver interface {
	// Resolve reports the location for uri. found is false when no process
	// has published uri; err is reserved for transport or protocol failures.
	Resolve(ctx context.Context, uri domain.PortURI) (loc domain.Location, found bool, err error)
}

// ResolverCache is implemented by resolvers that remember locations. Forget
// drops the entry for uri so the next Resolve asks the directory again.
type ResolverCache interface {
	Forget(uri domain.PortURI)
}

// LocationPublisher advertises where this process's ports can be reached.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, uri domain.PortURI, loc domain.Location) error
	WithdrawLocation(ctx context.Context, uri domain.PortURI) error
}

// ObeyConnection is the message a requiring port sends to a remote peer so
// the peer binds its side of the connection. The live connector cannot cross
// the process boundary, so its spec travels instead. SenderKind and Methods
// let the peer apply the same pairing checks a local connect would.
type ObeyConnection struct {
	Target         domain.PortURI       `json:"target"`
	Sender         domain.PortURI       `json:"sender"`
	SenderKind     domain.PortKind      `json:"sender_kind"`
	SenderLocation string               `json:"sender_location"`
	Interface      domain.InterfaceID   `json:"interface"`
	Methods        []string             `json:"methods,omitempty"`
	Spec           domain.ConnectorSpec `json:"spec"`
}

// RemotePeer carries the remote legs of the connection protocol to one process.
type RemotePeer interface {
	ObeyConnection(ctx context.Context, msg ObeyConnection) error
	ObeyDisconnection(ctx context.Context, target, sender domain.PortURI) error
	Invoke(ctx context.Context, target, caller domain.PortURI, req domain.Request) (domain.Response, error)
}

// PeerLinker opens RemotePeers. Implementations may share one link per location.
type PeerLinker interface {
	Link(ctx context.Context, loc domain.Location) (RemotePeer, error)
	Close() error
}
