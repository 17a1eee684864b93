package component

import (
	"slices"
	"sync"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Constructor builds a connector from its spec.
type Constructor func(spec domain.ConnectorSpec) (Connector, error)

// ConnectorFactory maps connector kinds to constructors. Each process keeps
// its own factory; a cross-process connection only needs both factories to
// agree on the kind tag.
type ConnectorFactory struct {
	mu    sync.RWMutex
	ctors map[domain.ConnectorKind]Constructor
}

// NewConnectorFactory returns a factory with the built-in kinds registered.
func NewConnectorFactory() *ConnectorFactory {
	f := &ConnectorFactory{ctors: make(map[domain.ConnectorKind]Constructor)}
	f.ctors[domain.ConnectorForwarding] = NewForwardingConnector
	f.ctors[domain.ConnectorData] = NewDataConnector
	f.ctors[domain.ConnectorTwoWay] = NewTwoWayConnector
	return f
}

// Register adds a constructor for kind. Registering a kind twice is a
// contract violation.
func (f *ConnectorFactory) Register(kind domain.ConnectorKind, ctor Constructor) error {
	if err := domain.NewConnectorSpec(kind).Validate(); err != nil {
		return errors.Violationf("cannot register connector kind: %v", err)
	}
	if ctor == nil {
		return errors.Violationf("nil constructor for connector kind %s", kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.ctors[kind]; exists {
		return errors.Violationf("connector kind %s is already registered", kind)
	}
	f.ctors[kind] = ctor
	return nil
}

// New instantiates the connector described by spec. An unknown kind is a
// protocol error: the peer named something this process cannot build.
func (f *ConnectorFactory) New(spec domain.ConnectorSpec) (Connector, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Protocolf("invalid connector spec: %v", err)
	}

	f.mu.RLock()
	ctor, ok := f.ctors[spec.Kind]
	f.mu.RUnlock()

	if !ok {
		return nil, errors.Protocolf("unknown connector kind %q", spec.Kind)
	}
	c, err := ctor(spec.Clone())
	if err != nil {
		return nil, errors.NewDomainError(errors.ErrProtocol, err)
	}
	return c, nil
}

// Kinds returns the registered kinds in sorted order.
func (f *ConnectorFactory) Kinds() []domain.ConnectorKind {
	f.mu.RLock()
	kinds := make([]domain.ConnectorKind, 0, len(f.ctors))
	for k := range f.ctors {
		kinds = append(kinds, k)
	}
	f.mu.RUnlock()

	slices.Sort(kinds)
	return kinds
}
