// Package component implements components, their ports, and the connectors
// that join ports within a process or across processes.
package component

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Component owns a set of ports checked against its capability manifest and a
// single-goroutine executor for its own work.
type Component struct {
	id       string
	manifest domain.Manifest
	node     *Node
	executor *Executor
	logger   *slog.Logger

	mu    sync.Mutex
	ports map[domain.PortURI]Port
}

// NewComponent creates a component hosted by n. The manifest is validated
// here, before any port exists.
func (n *Node) NewComponent(manifest domain.Manifest) (*Component, error) {
	if err := manifest.Validate(); err != nil {
		return nil, errors.NewDomainError(errors.ErrContractViolation, err)
	}
	id := manifest.Component + "-" + uuid.NewString()[:8]
	logger := n.logger.With("component", id)
	return &Component{
		id:       id,
		manifest: manifest,
		node:     n,
		executor: NewExecutor(logger),
		logger:   logger,
		ports:    make(map[domain.PortURI]Port),
	}, nil
}

func (c *Component) ID() string { return c.id }

func (c *Component) Manifest() domain.Manifest { return c.manifest }

func (c *Component) Node() *Node { return c.node }

// Submit queues task on the component's executor.
func (c *Component) Submit(task func()) error {
	return c.executor.Submit(task)
}

// Port returns the component's port with the given URI.
func (c *Component) Port(uri domain.PortURI) (Port, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.ports[uri]
	return p, ok
}

// Ports returns the component's live ports ordered by URI.
func (c *Component) Ports() []Port {
	c.mu.Lock()
	out := make([]Port, 0, len(c.ports))
	for _, p := range c.ports {
		out = append(out, p)
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b Port) int {
		switch {
		case a.URI() < b.URI():
			return -1
		case a.URI() > b.URI():
			return 1
		}
		return 0
	})
	return out
}

// NewInboundPort creates an inbound port for an offered interface. A zero
// uri is replaced by a generated one.
func (c *Component) NewInboundPort(uri domain.PortURI, id domain.InterfaceID, service Service) (*InboundPort, error) {
	iface, ok := c.manifest.Offers(id)
	if !ok {
		return nil, errors.Violationf("component %s does not offer %s", c.manifest.Component, id)
	}
	if service == nil {
		return nil, errors.Violationf("inbound port for %s needs a service", id)
	}
	p := &InboundPort{service: service}
	if err := c.adopt(p, uri, domain.PortInbound, iface); err != nil {
		return nil, err
	}
	return p, nil
}

// NewOutboundPort creates an outbound port for a required interface.
func (c *Component) NewOutboundPort(uri domain.PortURI, id domain.InterfaceID) (*OutboundPort, error) {
	iface, ok := c.manifest.Requires(id)
	if !ok {
		return nil, errors.Violationf("component %s does not require %s", c.manifest.Component, id)
	}
	p := &OutboundPort{}
	if err := c.adopt(p, uri, domain.PortOutbound, iface); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDataInboundPort creates a data provider port. Both interfaces must be offered.
func (c *Component) NewDataInboundPort(uri domain.PortURI, pull, push domain.InterfaceID, provider DataProvider) (*DataInboundPort, error) {
	pullIface, pushIface, err := c.dataInterfaces(pull, push, c.manifest.Offers)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.Violationf("data port for %s needs a provider", pull)
	}
	p := &DataInboundPort{push: pushIface, provider: provider}
	if err := c.adopt(p, uri, domain.PortDataInbound, pullIface); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDataOutboundPort creates a data client port. Both interfaces must be required.
func (c *Component) NewDataOutboundPort(uri domain.PortURI, pull, push domain.InterfaceID, consumer DataConsumer) (*DataOutboundPort, error) {
	pullIface, pushIface, err := c.dataInterfaces(pull, push, c.manifest.Requires)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, errors.Violationf("data port for %s needs a consumer", pull)
	}
	p := &DataOutboundPort{push: pushIface, consumer: consumer}
	if err := c.adopt(p, uri, domain.PortDataOutbound, pullIface); err != nil {
		return nil, err
	}
	return p, nil
}

// NewTwoWayPort creates a two-way port. The interface must be both offered
// and required.
func (c *Component) NewTwoWayPort(uri domain.PortURI, id domain.InterfaceID, service Service) (*TwoWayPort, error) {
	iface, offered := c.manifest.Offers(id)
	_, required := c.manifest.Requires(id)
	if !offered || !required {
		return nil, errors.Violationf("component %s must both offer and require %s for a two-way port", c.manifest.Component, id)
	}
	if service == nil {
		return nil, errors.Violationf("two-way port for %s needs a service", id)
	}
	p := &TwoWayPort{service: service}
	if err := c.adopt(p, uri, domain.PortTwoWay, iface); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Component) dataInterfaces(pull, push domain.InterfaceID, lookup func(domain.InterfaceID) (domain.Interface, bool)) (domain.Interface, domain.Interface, error) {
	pullIface, ok := lookup(pull)
	if !ok {
		return domain.Interface{}, domain.Interface{}, errors.Violationf("component %s does not declare pull interface %s", c.manifest.Component, pull)
	}
	pushIface, ok := lookup(push)
	if !ok {
		return domain.Interface{}, domain.Interface{}, errors.Violationf("component %s does not declare push interface %s", c.manifest.Component, push)
	}
	if !pullIface.Declares(MethodPull) {
		return domain.Interface{}, domain.Interface{}, errors.Violationf("pull interface %s must declare %q", pull, MethodPull)
	}
	if !pushIface.Declares(MethodPush) {
		return domain.Interface{}, domain.Interface{}, errors.Violationf("push interface %s must declare %q", push, MethodPush)
	}
	return pullIface, pushIface, nil
}

// adopt initialises p's base state and records it as one of c's ports.
func (c *Component) adopt(p Port, uri domain.PortURI, kind domain.PortKind, iface domain.Interface) error {
	if uri.IsZero() {
		uri = domain.GeneratePortURI(c.manifest.Component)
	}
	p.base().init(uri, kind, c, iface)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.ports[uri]; exists {
		return errors.Violationf("component %s already has a port %q", c.id, uri)
	}
	c.ports[uri] = p
	return nil
}

// DestroyPort ends the life of an unpublished port.
func (c *Component) DestroyPort(p Port) error {
	if p.Owner() != c {
		return errors.Violationf("port %q is not owned by %s", p.URI(), c.id)
	}
	if err := p.base().markDestroyed(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.ports, p.URI())
	c.mu.Unlock()
	return nil
}

// Shutdown disconnects, unpublishes and destroys every port, then drains the
// executor. It keeps going after a failure and returns every error met.
func (c *Component) Shutdown(ctx context.Context) error {
	var errs []error
	for _, p := range c.Ports() {
		if p.Connected() {
			if err := c.node.disconnect(ctx, p); err != nil {
				errs = append(errs, err)
			}
		}
		if p.State().Published() {
			if err := c.node.Unpublish(ctx, p); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := c.DestroyPort(p); err != nil {
			errs = append(errs, err)
		}
	}
	c.executor.Close()
	c.logger.Debug("component shut down", "errors", len(errs))
	return stderrors.Join(errs...)
}
