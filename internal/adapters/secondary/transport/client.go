package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sufield/junction/internal/adapters/interceptors"
	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
)

// Client is a ports.RemotePeer that reaches another process's gateway.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ ports.RemotePeer = (*Client)(nil)

// NewClient wraps an established connection to a gateway.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// ObeyConnection asks the remote process to bind msg.Target to the sender.
func (c *Client) ObeyConnection(ctx context.Context, msg ports.ObeyConnection) error {
	return fromStatus(c.conn.Invoke(ctx, obeyConnectionMethod, &obeyConnectionRequest{msg}, &empty{}, grpc.ForceCodec(jsonCodec{})))
}

// ObeyDisconnection asks the remote process to unbind target.
func (c *Client) ObeyDisconnection(ctx context.Context, target, sender domain.PortURI) error {
	in := &obeyDisconnectionRequest{Target: target, Sender: sender}
	return fromStatus(c.conn.Invoke(ctx, obeyDisconnectionMethod, in, &empty{}, grpc.ForceCodec(jsonCodec{})))
}

// Invoke delivers req to the remote port target on behalf of caller.
func (c *Client) Invoke(ctx context.Context, target, caller domain.PortURI, req domain.Request) (domain.Response, error) {
	in := &invokeRequest{Target: target, Caller: caller, Request: req}
	out := new(invokeResponse)
	if err := c.conn.Invoke(ctx, invokeMethod, in, out, grpc.ForceCodec(jsonCodec{})); err != nil {
		return domain.Response{}, fromStatus(err)
	}
	return out.Response, nil
}

// Linker is a ports.PeerLinker that keeps one gateway connection per location.
type Linker struct {
	opts []grpc.DialOption

	mu     sync.Mutex
	conns  map[domain.Location]*grpc.ClientConn
	closed bool
}

var _ ports.PeerLinker = (*Linker)(nil)

// NewLinker creates a linker. nodeID is stamped on outgoing calls; extra
// dial options follow the defaults, so they can replace credentials or the dialer.
func NewLinker(nodeID string, config *ConnectionConfig, opts ...grpc.DialOption) *Linker {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(interceptors.UnaryClientInterceptor(nodeID)),
	}
	dialOpts = append(dialOpts, config.ToDialOptions()...)
	dialOpts = append(dialOpts, opts...)

	return &Linker{
		opts:  dialOpts,
		conns: make(map[domain.Location]*grpc.ClientConn),
	}
}

// Link returns a RemotePeer for the gateway at loc. The connection is
// established lazily; failures surface on the first call as transport errors.
func (l *Linker) Link(_ context.Context, loc domain.Location) (ports.RemotePeer, error) {
	if loc.IsZero() {
		return nil, errors.Protocolf("cannot link to an empty location")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.Violationf("linker is closed")
	}
	if conn, ok := l.conns[loc]; ok {
		return NewClient(conn), nil
	}

	conn, err := grpc.NewClient("passthrough:///"+loc.String(), l.opts...)
	if err != nil {
		return nil, errors.NewDomainError(errors.ErrTransport, fmt.Errorf("link %s: %w", loc, err))
	}
	l.conns[loc] = conn
	return NewClient(conn), nil
}

// Links reports the number of open gateway connections.
func (l *Linker) Links() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Close closes every connection. Further Link calls fail.
func (l *Linker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	for loc, conn := range l.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close link %s: %w", loc, err))
		}
	}
	clear(l.conns)
	return stderrors.Join(errs...)
}
