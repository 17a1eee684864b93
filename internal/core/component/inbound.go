package component

import (
	"context"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// InboundPort exposes one offered interface of its owner.
type InboundPort struct {
	basePort
	service Service
}

// Accept checks req against the port's interface and hands it to the service.
func (p *InboundPort) Accept(ctx context.Context, _ domain.PortURI, req domain.Request) (domain.Response, error) {
	if err := checkRequest(p.uri, p.iface, req); err != nil {
		return domain.Response{}, err
	}
	return p.service.Serve(ctx, req)
}

// OutboundPort calls an interface offered elsewhere.
type OutboundPort struct {
	basePort
}

// Accept always fails: nothing may call into an outbound port.
func (p *OutboundPort) Accept(context.Context, domain.PortURI, domain.Request) (domain.Response, error) {
	return domain.Response{}, errors.Violationf("outbound port %q does not accept calls", p.uri)
}

// Call invokes method on the connected peer and waits for the result.
func (p *OutboundPort) Call(ctx context.Context, method string, payload []byte) (domain.Response, error) {
	if !p.iface.Declares(method) {
		return domain.Response{}, errors.Protocolf("interface %s has no method %q", p.iface.ID, method)
	}
	c, err := p.connectedConnector()
	if err != nil {
		return domain.Response{}, err
	}
	caller, ok := c.(Caller)
	if !ok {
		return domain.Response{}, errors.Violationf("connector %s cannot carry calls from %q", c.Kind(), p.uri)
	}
	return caller.Call(ctx, domain.NewRequest(p.iface.ID, method, payload))
}

// CallAsync runs Call off the owner's executor. Continuations registered on
// the returned future run on the owner's executor.
func (p *OutboundPort) CallAsync(ctx context.Context, method string, payload []byte) *Future[domain.Response] {
	return Go(ctx, p.owner.executor, func(ctx context.Context) (domain.Response, error) {
		return p.Call(ctx, method, payload)
	})
}
