package component

import (
	"context"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// TwoWayPort both serves and makes calls on one interface shared with a
// symmetric peer.
type TwoWayPort struct {
	basePort
	service Service
}

// Accept serves a call made by the peer.
func (p *TwoWayPort) Accept(ctx context.Context, _ domain.PortURI, req domain.Request) (domain.Response, error) {
	if err := checkRequest(p.uri, p.iface, req); err != nil {
		return domain.Response{}, err
	}
	return p.service.Serve(ctx, req)
}

// Call invokes method on the peer through a proxy tagged with this port's URI.
func (p *TwoWayPort) Call(ctx context.Context, method string, payload []byte) (domain.Response, error) {
	if !p.iface.Declares(method) {
		return domain.Response{}, errors.Protocolf("interface %s has no method %q", p.iface.ID, method)
	}
	c, err := p.connectedConnector()
	if err != nil {
		return domain.Response{}, err
	}
	router, ok := c.(Router)
	if !ok {
		return domain.Response{}, errors.Violationf("connector %s cannot route two-way calls", c.Kind())
	}
	return router.Proxy(p.uri).Invoke(ctx, domain.NewRequest(p.iface.ID, method, payload))
}

// CallAsync runs Call off the owner's executor.
func (p *TwoWayPort) CallAsync(ctx context.Context, method string, payload []byte) *Future[domain.Response] {
	return Go(ctx, p.owner.executor, func(ctx context.Context) (domain.Response, error) {
		return p.Call(ctx, method, payload)
	})
}
