package component

import (
	"context"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// DataInboundPort offers a pull interface to its clients and pushes
// deliveries from its owner through the connector. It reports the pull
// interface as its implemented interface.
type DataInboundPort struct {
	basePort
	push     domain.Interface
	provider DataProvider
}

// PushInterface returns the interface deliveries are pushed on.
func (p *DataInboundPort) PushInterface() domain.Interface { return p.push }

func (p *DataInboundPort) Interfaces() []domain.Interface {
	return []domain.Interface{p.iface, p.push}
}

// Accept answers a pull.
func (p *DataInboundPort) Accept(ctx context.Context, _ domain.PortURI, req domain.Request) (domain.Response, error) {
	if err := checkRequest(p.uri, p.iface, req); err != nil {
		return domain.Response{}, err
	}
	if req.Method != MethodPull {
		return domain.Response{}, errors.Protocolf("data port %q only answers %q", p.uri, MethodPull)
	}
	data, err := p.provider.Pull(ctx)
	if err != nil {
		return domain.Response{}, err
	}
	return domain.Response{Payload: data}, nil
}

// Push delivers payload to the connected client.
func (p *DataInboundPort) Push(ctx context.Context, payload []byte) error {
	c, err := p.connectedConnector()
	if err != nil {
		return err
	}
	pusher, ok := c.(Pusher)
	if !ok {
		return errors.Violationf("connector %s cannot carry pushes from %q", c.Kind(), p.uri)
	}
	return pusher.Push(ctx, domain.NewRequest(p.push.ID, MethodPush, payload))
}

// DataOutboundPort pulls from a data provider and receives its pushes.
type DataOutboundPort struct {
	basePort
	push     domain.Interface
	consumer DataConsumer
}

// PushInterface returns the interface deliveries arrive on.
func (p *DataOutboundPort) PushInterface() domain.Interface { return p.push }

func (p *DataOutboundPort) Interfaces() []domain.Interface {
	return []domain.Interface{p.iface, p.push}
}

// Accept hands a push delivery to the consumer.
func (p *DataOutboundPort) Accept(ctx context.Context, _ domain.PortURI, req domain.Request) (domain.Response, error) {
	if err := checkRequest(p.uri, p.push, req); err != nil {
		return domain.Response{}, err
	}
	if req.Method != MethodPush {
		return domain.Response{}, errors.Protocolf("data port %q only receives %q", p.uri, MethodPush)
	}
	return domain.Response{}, p.consumer.Receive(ctx, req.Payload)
}

// Pull asks the connected provider for data.
func (p *DataOutboundPort) Pull(ctx context.Context) ([]byte, error) {
	c, err := p.connectedConnector()
	if err != nil {
		return nil, err
	}
	caller, ok := c.(Caller)
	if !ok {
		return nil, errors.Violationf("connector %s cannot carry pulls from %q", c.Kind(), p.uri)
	}
	resp, err := caller.Call(ctx, domain.NewRequest(p.iface.ID, MethodPull, nil))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// PullAsync runs Pull off the owner's executor.
func (p *DataOutboundPort) PullAsync(ctx context.Context) *Future[[]byte] {
	return Go(ctx, p.owner.executor, p.Pull)
}
