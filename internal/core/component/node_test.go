package component

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
)

var (
	calcIface = domain.Interface{ID: "calc/v1", Methods: []string{"add", "neg"}}
	chatIface = domain.Interface{ID: "chat/v1", Methods: []string{"say"}}
	pullIface = domain.Interface{ID: "ticks/pull", Methods: []string{MethodPull}}
	pushIface = domain.Interface{ID: "ticks/push", Methods: []string{MethodPush}}
)

var calcService = ServiceFunc(func(_ context.Context, req domain.Request) (domain.Response, error) {
	switch req.Method {
	case "add":
		parts := strings.Fields(string(req.Payload))
		sum := 0
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return domain.Response{}, err
			}
			sum += n
		}
		return domain.Response{Payload: []byte(strconv.Itoa(sum))}, nil
	default:
		return domain.Response{Payload: []byte("-" + string(req.Payload))}, nil
	}
})

func newTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	n, err := NewNode(opts...)
	require.NoError(t, err)
	return n
}

func newTestComponent(t *testing.T, n *Node, m domain.Manifest) *Component {
	t.Helper()
	c, err := n.NewComponent(m)
	require.NoError(t, err)
	t.Cleanup(func() { c.executor.Close() })
	return c
}

// calcPair publishes a calculator server and a client on n.
func calcPair(t *testing.T, n *Node) (*InboundPort, *OutboundPort) {
	t.Helper()
	ctx := context.Background()

	server := newTestComponent(t, n, domain.Manifest{Component: "server", Offered: []domain.Interface{calcIface}})
	client := newTestComponent(t, n, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})

	in, err := server.NewInboundPort("calc", calcIface.ID, calcService)
	require.NoError(t, err)
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, in))
	require.NoError(t, n.Publish(ctx, out))
	return in, out
}

func TestNode_PublishLookupUnpublish(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	c := newTestComponent(t, n, domain.Manifest{Component: "server", Offered: []domain.Interface{calcIface}})

	p, err := c.NewInboundPort("", calcIface.ID, calcService)
	require.NoError(t, err)
	assert.False(t, p.URI().IsZero(), "generated URI")
	assert.Equal(t, domain.StateUnpublished, p.State())

	require.NoError(t, n.Publish(ctx, p))
	got, ok := n.Lookup(p.URI())
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, domain.StateDisconnected, p.State())

	err = n.Publish(ctx, p)
	assert.True(t, errors.IsContractViolation(err), "publish is not reentrant")

	require.NoError(t, n.Unpublish(ctx, p))
	_, ok = n.Lookup(p.URI())
	assert.False(t, ok)

	err = n.Unpublish(ctx, p)
	assert.True(t, errors.IsContractViolation(err))

	require.NoError(t, c.DestroyPort(p))
	assert.Equal(t, domain.StateDestroyed, p.State())
	assert.True(t, errors.IsContractViolation(n.Publish(ctx, p)))
}

func TestNode_PublishDuplicateURI(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	a := newTestComponent(t, n, domain.Manifest{Component: "a", Offered: []domain.Interface{calcIface}})
	b := newTestComponent(t, n, domain.Manifest{Component: "b", Offered: []domain.Interface{calcIface}})

	p1, err := a.NewInboundPort("shared", calcIface.ID, calcService)
	require.NoError(t, err)
	p2, err := b.NewInboundPort("shared", calcIface.ID, calcService)
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, p1))
	err = n.Publish(ctx, p2)
	assert.True(t, errors.IsContractViolation(err))
	assert.Equal(t, domain.StateUnpublished, p2.State(), "failed publish leaves the port unpublished")
}

func TestComponent_PortsCheckedAgainstManifest(t *testing.T) {
	n := newTestNode(t)
	c := newTestComponent(t, n, domain.Manifest{
		Component: "mixed",
		Offered:   []domain.Interface{calcIface, pullIface, pushIface},
		Required:  []domain.Interface{chatIface},
	})

	tests := []struct {
		name string
		make func() error
	}{
		{"inbound for required interface", func() error {
			_, err := c.NewInboundPort("", chatIface.ID, calcService)
			return err
		}},
		{"outbound for offered interface", func() error {
			_, err := c.NewOutboundPort("", calcIface.ID)
			return err
		}},
		{"two-way not offered", func() error {
			_, err := c.NewTwoWayPort("", chatIface.ID, calcService)
			return err
		}},
		{"data outbound for offered interfaces", func() error {
			_, err := c.NewDataOutboundPort("", pullIface.ID, pushIface.ID, DataConsumerFunc(func(context.Context, []byte) error { return nil }))
			return err
		}},
		{"data pull interface without get", func() error {
			_, err := c.NewDataInboundPort("", calcIface.ID, pushIface.ID, DataProviderFunc(func(context.Context) ([]byte, error) { return nil, nil }))
			return err
		}},
		{"inbound without service", func() error {
			_, err := c.NewInboundPort("", calcIface.ID, nil)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.IsContractViolation(tt.make()))
		})
	}
}

func TestNode_ConnectCallDisconnect(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	in, out := calcPair(t, n)

	require.NoError(t, n.Connect(ctx, out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding)))

	c := out.Connector()
	require.NotNil(t, c)
	assert.True(t, c.Connected())
	assert.True(t, out.Connected())
	assert.True(t, in.Connected())
	assert.Same(t, c, in.Connector(), "both sides share the live connector")
	assert.False(t, out.PeerRemote())

	resp, err := out.Call(ctx, "add", []byte("2 3"))
	require.NoError(t, err)
	assert.Equal(t, "5", string(resp.Payload))

	_, err = out.Call(ctx, "mul", nil)
	assert.Equal(t, errors.CodeProtocol, errors.CodeOf(err))

	err = n.Unpublish(ctx, out)
	assert.True(t, errors.IsContractViolation(err), "connected ports cannot be unpublished")

	require.NoError(t, n.Disconnect(ctx, out.URI()))
	assert.False(t, c.Connected())
	assert.False(t, out.Connected())
	assert.False(t, in.Connected())
	assert.Nil(t, out.Connector())
	assert.Nil(t, in.Connector())

	err = n.Disconnect(ctx, out.URI())
	assert.True(t, errors.IsContractViolation(err))
}

func TestNode_ConnectAlreadyConnected(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	in, out := calcPair(t, n)
	spec := domain.NewConnectorSpec(domain.ConnectorForwarding)

	require.NoError(t, n.Connect(ctx, out.URI(), in.URI(), spec))
	before := out.Connector()

	err := n.Connect(ctx, out.URI(), in.URI(), spec)
	require.Error(t, err)
	assert.True(t, errors.IsContractViolation(err))

	assert.True(t, out.Connected())
	assert.True(t, in.Connected())
	assert.Same(t, before, out.Connector())
	assert.True(t, before.Connected())
}

func TestNode_ConnectRejectsMismatches(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	in, out := calcPair(t, n)

	chat := newTestComponent(t, n, domain.Manifest{Component: "chat", Offered: []domain.Interface{chatIface}})
	chatIn, err := chat.NewInboundPort("chat", chatIface.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, n.Publish(ctx, chatIn))

	tests := []struct {
		name      string
		requiring domain.PortURI
		offering  domain.PortURI
		spec      domain.ConnectorSpec
		code      string
	}{
		{"wrong interface", out.URI(), chatIn.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding), errors.CodeContractViolation},
		{"wrong connector", out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorTwoWay), errors.CodeContractViolation},
		{"inbound initiates", in.URI(), out.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding), errors.CodeContractViolation},
		{"unpublished requiring", "nowhere", in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding), errors.CodeContractViolation},
		{"unknown connector", out.URI(), in.URI(), domain.NewConnectorSpec("teleport"), errors.CodeProtocol},
		{"missing peer, local deployment", out.URI(), "elsewhere", domain.NewConnectorSpec(domain.ConnectorForwarding), errors.CodeMisconfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.Connect(ctx, tt.requiring, tt.offering, tt.spec)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.False(t, out.Connected())
			assert.False(t, in.Connected())
		})
	}
}

func TestNode_TwoWayPorts(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	m := domain.Manifest{
		Component: "peer",
		Offered:   []domain.Interface{chatIface},
		Required:  []domain.Interface{chatIface},
	}

	echo := func(name string) Service {
		return ServiceFunc(func(_ context.Context, req domain.Request) (domain.Response, error) {
			return domain.Response{Payload: []byte(name + " got " + string(req.Payload))}, nil
		})
	}
	alice, err := newTestComponent(t, n, m).NewTwoWayPort("alice", chatIface.ID, echo("alice"))
	require.NoError(t, err)
	bob, err := newTestComponent(t, n, m).NewTwoWayPort("bob", chatIface.ID, echo("bob"))
	require.NoError(t, err)
	require.NoError(t, n.Publish(ctx, alice))
	require.NoError(t, n.Publish(ctx, bob))

	require.NoError(t, n.Connect(ctx, alice.URI(), bob.URI(), domain.NewConnectorSpec(domain.ConnectorTwoWay)))

	resp, err := alice.Call(ctx, "say", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "bob got hello", string(resp.Payload))

	resp, err = bob.Call(ctx, "say", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "alice got hi", string(resp.Payload))

	// Either side of a two-way connection may tear it down.
	require.NoError(t, n.Disconnect(ctx, bob.URI()))
	assert.False(t, alice.Connected())
	assert.False(t, bob.Connected())
}

func TestNode_DataPorts(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)

	provider := newTestComponent(t, n, domain.Manifest{Component: "clock", Offered: []domain.Interface{pullIface, pushIface}})
	consumer := newTestComponent(t, n, domain.Manifest{Component: "display", Required: []domain.Interface{pullIface, pushIface}})

	src, err := provider.NewDataInboundPort("ticks", pullIface.ID, pushIface.ID,
		DataProviderFunc(func(context.Context) ([]byte, error) { return []byte("tick-1"), nil }))
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received []string
	)
	sink, err := consumer.NewDataOutboundPort("ticks-in", pullIface.ID, pushIface.ID,
		DataConsumerFunc(func(_ context.Context, payload []byte) error {
			mu.Lock()
			received = append(received, string(payload))
			mu.Unlock()
			return nil
		}))
	require.NoError(t, err)

	assert.Equal(t, pullIface.ID, src.Interface().ID, "pull interface is the reported one")
	assert.Len(t, src.Interfaces(), 2)

	require.NoError(t, n.Publish(ctx, src))
	require.NoError(t, n.Publish(ctx, sink))
	require.NoError(t, n.Connect(ctx, sink.URI(), src.URI(), domain.NewConnectorSpec(domain.ConnectorData)))

	data, err := sink.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tick-1", string(data))

	require.NoError(t, src.Push(ctx, []byte("tick-2")))
	mu.Lock()
	assert.Equal(t, []string{"tick-2"}, received)
	mu.Unlock()

	data, err = sink.PullAsync(ctx).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tick-1", string(data))

	require.NoError(t, n.Disconnect(ctx, sink.URI()))
	assert.True(t, errors.IsContractViolation(src.Push(ctx, nil)))
}

func TestOutboundPort_CallAsync(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	in, out := calcPair(t, n)
	require.NoError(t, n.Connect(ctx, out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding)))

	got := make(chan string, 1)
	out.CallAsync(ctx, "neg", []byte("7")).Then(func(resp domain.Response, err error) {
		assert.NoError(t, err)
		got <- string(resp.Payload)
	})
	assert.Equal(t, "-7", <-got)
}

func TestComponent_Shutdown(t *testing.T) {
	ctx := context.Background()
	n := newTestNode(t)
	in, out := calcPair(t, n)
	require.NoError(t, n.Connect(ctx, out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding)))

	require.NoError(t, in.Owner().Shutdown(ctx))

	assert.Equal(t, domain.StateDestroyed, in.State())
	assert.False(t, out.Connected(), "peer was told about the disconnection")
	_, ok := n.Lookup(in.URI())
	assert.False(t, ok)
	assert.Empty(t, in.Owner().Ports())
}

// mockResolver and friends stand in for the directory and the gateway.
type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, uri domain.PortURI) (domain.Location, bool, error) {
	args := m.Called(ctx, uri)
	return args.Get(0).(domain.Location), args.Bool(1), args.Error(2)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishLocation(ctx context.Context, uri domain.PortURI, loc domain.Location) error {
	return m.Called(ctx, uri, loc).Error(0)
}

func (m *mockPublisher) WithdrawLocation(ctx context.Context, uri domain.PortURI) error {
	return m.Called(ctx, uri).Error(0)
}

type mockPeer struct{ mock.Mock }

func (m *mockPeer) ObeyConnection(ctx context.Context, msg ports.ObeyConnection) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockPeer) ObeyDisconnection(ctx context.Context, target, sender domain.PortURI) error {
	return m.Called(ctx, target, sender).Error(0)
}

func (m *mockPeer) Invoke(ctx context.Context, target, caller domain.PortURI, req domain.Request) (domain.Response, error) {
	args := m.Called(ctx, target, caller, req)
	return args.Get(0).(domain.Response), args.Error(1)
}

// staticLinker hands out fixed peers by location.
type staticLinker struct {
	peers map[domain.Location]ports.RemotePeer
}

func (l *staticLinker) Link(_ context.Context, loc domain.Location) (ports.RemotePeer, error) {
	p, ok := l.peers[loc]
	if !ok {
		return nil, errors.NewDomainError(errors.ErrTransport, nil)
	}
	return p, nil
}

func (l *staticLinker) Close() error { return nil }

// cachingResolver is a mockResolver that also drops cached entries.
type cachingResolver struct{ mockResolver }

func (m *cachingResolver) Forget(uri domain.PortURI) {
	m.Called(uri)
}

// nodePair returns two distributed nodes that reach each other through one
// static linker.
func nodePair(t *testing.T, resolver ports.PeerResolver) (a, b *Node, linker *staticLinker) {
	t.Helper()
	locA, _ := domain.NewLocation("10.0.0.1", 7001)
	locB, _ := domain.NewLocation("10.0.0.2", 7001)

	linker = &staticLinker{peers: map[domain.Location]ports.RemotePeer{}}
	a = newTestNode(t, WithID("a"), WithDistributed(true), WithLocation(locA), WithResolver(resolver), WithLinker(linker))
	b = newTestNode(t, WithID("b"), WithDistributed(true), WithLocation(locB), WithResolver(resolver), WithLinker(linker))
	linker.peers[locA] = a
	linker.peers[locB] = b
	return a, b, linker
}

func TestNode_DistributedRequiresCollaborators(t *testing.T) {
	_, err := NewNode(WithDistributed(true))
	assert.Equal(t, errors.CodeMisconfigured, errors.CodeOf(err))

	loc, _ := domain.NewLocation("127.0.0.1", 7001)
	_, err = NewNode(WithDistributed(true), WithLocation(loc), WithResolver(&mockResolver{}))
	assert.Equal(t, errors.CodeMisconfigured, errors.CodeOf(err))
}

func TestNode_ConnectRemote(t *testing.T) {
	ctx := context.Background()
	local, _ := domain.NewLocation("10.0.0.1", 7001)
	far, _ := domain.NewLocation("10.0.0.2", 7001)
	target := domain.MustPortURI("calc")

	resolver := &mockResolver{}
	resolver.On("Resolve", mock.Anything, target).Return(far, true, nil)
	peer := &mockPeer{}
	publisher := &mockPublisher{}
	publisher.On("PublishLocation", mock.Anything, domain.MustPortURI("calc-client"), local).Return(nil)

	n := newTestNode(t,
		WithDistributed(true),
		WithLocation(local),
		WithResolver(resolver),
		WithPublisher(publisher),
		WithLinker(&staticLinker{peers: map[domain.Location]ports.RemotePeer{far: peer}}))

	client := newTestComponent(t, n, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, n.Publish(ctx, out))

	peer.On("ObeyConnection", mock.Anything, ports.ObeyConnection{
		Target:         target,
		Sender:         out.URI(),
		SenderKind:     domain.PortOutbound,
		SenderLocation: local.String(),
		Interface:      calcIface.ID,
		Methods:        calcIface.Methods,
		Spec:           domain.NewConnectorSpec(domain.ConnectorForwarding),
	}).Return(nil).Once()
	peer.On("Invoke", mock.Anything, target, out.URI(), domain.NewRequest(calcIface.ID, "add", []byte("1 1"))).
		Return(domain.Response{Payload: []byte("2")}, nil).Once()
	peer.On("ObeyDisconnection", mock.Anything, target, out.URI()).Return(nil).Once()

	require.NoError(t, n.Connect(ctx, out.URI(), target, domain.NewConnectorSpec(domain.ConnectorForwarding)))
	assert.True(t, out.Connected())
	assert.True(t, out.PeerRemote())

	resp, err := out.Call(ctx, "add", []byte("1 1"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(resp.Payload))

	require.NoError(t, n.Disconnect(ctx, out.URI()))
	assert.False(t, out.Connected())

	resolver.AssertExpectations(t)
	publisher.AssertExpectations(t)
	peer.AssertExpectations(t)
}

func TestNode_ConnectRemoteNotFound(t *testing.T) {
	ctx := context.Background()
	loc, _ := domain.NewLocation("10.0.0.1", 7001)

	resolver := &mockResolver{}
	resolver.On("Resolve", mock.Anything, domain.MustPortURI("ghost")).Return(domain.Location{}, false, nil)

	n := newTestNode(t,
		WithDistributed(true),
		WithLocation(loc),
		WithResolver(resolver),
		WithLinker(&staticLinker{}))
	client := newTestComponent(t, n, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	out, err := client.NewOutboundPort("", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, n.Publish(ctx, out))

	err = n.Connect(ctx, out.URI(), "ghost", domain.NewConnectorSpec(domain.ConnectorForwarding))
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
	assert.False(t, out.Connected())

	// The failed attempt released the port for another try.
	err = n.Connect(ctx, out.URI(), "ghost", domain.NewConnectorSpec(domain.ConnectorForwarding))
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}

// Two nodes in one test process, each acting as the other's gateway.
func TestNode_ConnectAcrossNodes(t *testing.T) {
	ctx := context.Background()
	locA, _ := domain.NewLocation("10.0.0.1", 7001)
	locB, _ := domain.NewLocation("10.0.0.2", 7001)

	linker := &staticLinker{peers: map[domain.Location]ports.RemotePeer{}}
	resolver := &mockResolver{}

	a := newTestNode(t, WithID("a"), WithDistributed(true), WithLocation(locA), WithResolver(resolver), WithLinker(linker))
	b := newTestNode(t, WithID("b"), WithDistributed(true), WithLocation(locB), WithResolver(resolver), WithLinker(linker))
	linker.peers[locA] = a
	linker.peers[locB] = b

	server := newTestComponent(t, b, domain.Manifest{Component: "server", Offered: []domain.Interface{calcIface}})
	in, err := server.NewInboundPort("calc", calcIface.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, in))

	client := newTestComponent(t, a, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, out))

	resolver.On("Resolve", mock.Anything, in.URI()).Return(locB, true, nil)

	require.NoError(t, a.Connect(ctx, out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding)))
	assert.True(t, out.Connected())
	assert.True(t, in.Connected())
	assert.True(t, in.PeerRemote())
	assert.NotSame(t, out.Connector(), in.Connector(), "each process holds its own connector")

	resp, err := out.Call(ctx, "add", []byte("20 22"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(resp.Payload))

	// A stranger cannot call through the gateway.
	_, err = b.Invoke(ctx, in.URI(), "stranger", domain.NewRequest(calcIface.ID, "add", nil))
	assert.True(t, errors.IsContractViolation(err))

	require.NoError(t, a.Disconnect(ctx, out.URI()))
	assert.False(t, out.Connected())
	assert.False(t, in.Connected())
}

func TestNode_ConnectAcrossNodesRejectsMismatches(t *testing.T) {
	ctx := context.Background()
	resolver := &mockResolver{}
	a, b, _ := nodePair(t, resolver)

	client := newTestComponent(t, a, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, out))

	other := newTestComponent(t, b, domain.Manifest{Component: "other", Required: []domain.Interface{calcIface}})
	wrongKind, err := other.NewOutboundPort("calc-other-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, wrongKind))

	narrow := domain.Interface{ID: calcIface.ID, Methods: []string{"add"}}
	server := newTestComponent(t, b, domain.Manifest{Component: "narrow", Offered: []domain.Interface{narrow}})
	missing, err := server.NewInboundPort("calc-narrow", narrow.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, missing))

	chat := newTestComponent(t, b, domain.Manifest{Component: "chat", Offered: []domain.Interface{chatIface}})
	chatIn, err := chat.NewInboundPort("chat", chatIface.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, chatIn))

	locB := b.Location()
	tests := []struct {
		name   string
		target Port
	}{
		{"outbound to outbound", wrongKind},
		{"missing method", missing},
		{"wrong interface", chatIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver.On("Resolve", mock.Anything, tt.target.URI()).Return(locB, true, nil).Once()

			err := a.Connect(ctx, out.URI(), tt.target.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding))
			require.Error(t, err)
			assert.True(t, errors.IsContractViolation(err))
			assert.False(t, out.Connected())
			assert.False(t, tt.target.Connected())
		})
	}
	resolver.AssertExpectations(t)
}

func TestNode_ObeyConnectionChecksSenderKind(t *testing.T) {
	ctx := context.Background()
	_, b, _ := nodePair(t, &mockResolver{})

	server := newTestComponent(t, b, domain.Manifest{Component: "server", Offered: []domain.Interface{calcIface}})
	in, err := server.NewInboundPort("calc", calcIface.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, in))

	err = b.ObeyConnection(ctx, ports.ObeyConnection{
		Target:         in.URI(),
		Sender:         "calc-client",
		SenderLocation: "10.0.0.1:7001",
		Interface:      calcIface.ID,
		Spec:           domain.NewConnectorSpec(domain.ConnectorForwarding),
	})
	assert.True(t, errors.IsContractViolation(err), "a message without a sender kind is refused")
	assert.False(t, in.Connected())
}

func TestNode_ConnectRetriesStaleLocation(t *testing.T) {
	ctx := context.Background()
	resolver := &cachingResolver{}
	a, b, linker := nodePair(t, resolver)

	stale, _ := domain.NewLocation("10.0.0.9", 7001)
	gone := &mockPeer{}
	gone.On("ObeyConnection", mock.Anything, mock.Anything).
		Return(errors.NewDomainError(errors.ErrNotFound, nil)).Once()
	linker.peers[stale] = gone

	server := newTestComponent(t, b, domain.Manifest{Component: "server", Offered: []domain.Interface{calcIface}})
	in, err := server.NewInboundPort("calc", calcIface.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, in))

	client := newTestComponent(t, a, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, out))

	resolver.On("Resolve", mock.Anything, in.URI()).Return(stale, true, nil).Once()
	resolver.On("Forget", in.URI()).Once()
	resolver.On("Resolve", mock.Anything, in.URI()).Return(b.Location(), true, nil).Once()

	require.NoError(t, a.Connect(ctx, out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding)))
	assert.True(t, out.Connected())
	assert.True(t, in.Connected())

	resp, err := out.Call(ctx, "add", []byte("1 2"))
	require.NoError(t, err)
	assert.Equal(t, "3", string(resp.Payload))

	resolver.AssertExpectations(t)
	gone.AssertExpectations(t)
}

func TestNode_ConnectRetriesOnce(t *testing.T) {
	ctx := context.Background()
	resolver := &cachingResolver{}
	a, _, _ := nodePair(t, resolver)

	unreachable, _ := domain.NewLocation("10.0.0.9", 7001)
	target := domain.MustPortURI("calc")
	resolver.On("Resolve", mock.Anything, target).Return(unreachable, true, nil).Twice()
	resolver.On("Forget", target).Once()

	client := newTestComponent(t, a, domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, out))

	err = a.Connect(ctx, out.URI(), target, domain.NewConnectorSpec(domain.ConnectorForwarding))
	assert.Equal(t, errors.CodeTransport, errors.CodeOf(err))
	assert.False(t, out.Connected())
	resolver.AssertExpectations(t)
}

func TestNode_DataPortsAcrossNodes(t *testing.T) {
	ctx := context.Background()
	resolver := &mockResolver{}
	a, b, _ := nodePair(t, resolver)

	provider := newTestComponent(t, b, domain.Manifest{Component: "clock", Offered: []domain.Interface{pullIface, pushIface}})
	src, err := provider.NewDataInboundPort("ticks", pullIface.ID, pushIface.ID,
		DataProviderFunc(func(context.Context) ([]byte, error) { return []byte("tick-1"), nil }))
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, src))

	received := make(chan string, 1)
	consumer := newTestComponent(t, a, domain.Manifest{Component: "display", Required: []domain.Interface{pullIface, pushIface}})
	sink, err := consumer.NewDataOutboundPort("ticks-in", pullIface.ID, pushIface.ID,
		DataConsumerFunc(func(_ context.Context, payload []byte) error {
			received <- string(payload)
			return nil
		}))
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, sink))

	resolver.On("Resolve", mock.Anything, src.URI()).Return(b.Location(), true, nil).Once()
	require.NoError(t, a.Connect(ctx, sink.URI(), src.URI(), domain.NewConnectorSpec(domain.ConnectorData)))

	data, err := sink.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tick-1", string(data))

	require.NoError(t, src.Push(ctx, []byte("tick-2")))
	assert.Equal(t, "tick-2", <-received)
}
