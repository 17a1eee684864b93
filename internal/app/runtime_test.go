package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/junction/internal/app"
	"github.com/sufield/junction/internal/core/component"
	"github.com/sufield/junction/internal/core/domain"
	domainerrors "github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/directory"
)

var calcIface = domain.Interface{ID: "calc/v1", Methods: []string{"add"}}

var calcService = component.ServiceFunc(func(_ context.Context, req domain.Request) (domain.Response, error) {
	var a, b int
	if _, err := fmt.Sscanf(string(req.Payload), "%d %d", &a, &b); err != nil {
		return domain.Response{}, err
	}
	return domain.Response{Payload: []byte(fmt.Sprint(a + b))}, nil
})

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDirectory serves a directory for participants connections and returns its address.
func startDirectory(t *testing.T, participants int) string {
	t.Helper()
	srv, err := directory.NewServer(directory.Config{Participants: participants, Logger: quietLogger()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func startRuntime(t *testing.T, id, directoryAddr string) *app.Runtime {
	t.Helper()
	cfg := ports.NodeConfig{
		ID:                id,
		Distributed:       true,
		GatewayAddress:    "127.0.0.1:0",
		DirectoryAddress:  directoryAddr,
		ResolverCacheSize: 16,
	}
	rt, err := app.NewRuntime(context.Background(), cfg, app.Options{Logger: quietLogger()})
	require.NoError(t, err)
	require.True(t, rt.Distributed())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, rt.Close())
	})
	return rt
}

func TestRuntime_ConnectsThroughDirectory(t *testing.T) {
	ctx := context.Background()
	dir := startDirectory(t, 2)
	a := startRuntime(t, "node-a", dir)
	b := startRuntime(t, "node-b", dir)

	assert.Equal(t, b.GatewayAddr().String(), b.Node.Location().String())

	server, err := b.Node.NewComponent(domain.Manifest{Component: "server", Offered: []domain.Interface{calcIface}})
	require.NoError(t, err)
	in, err := server.NewInboundPort("calc", calcIface.ID, calcService)
	require.NoError(t, err)
	require.NoError(t, b.Node.Publish(ctx, in))

	client, err := a.Node.NewComponent(domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	require.NoError(t, err)
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, a.Node.Publish(ctx, out))

	require.NoError(t, a.Node.Connect(ctx, out.URI(), in.URI(), domain.NewConnectorSpec(domain.ConnectorForwarding)))
	assert.True(t, in.PeerRemote())

	resp, err := out.Call(ctx, "add", []byte("40 2"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(resp.Payload))

	require.NoError(t, client.Shutdown(ctx))
	require.NoError(t, server.Shutdown(ctx))
	assert.False(t, in.Connected())
}

func TestRuntime_UnknownPortIsNotFound(t *testing.T) {
	ctx := context.Background()
	dir := startDirectory(t, 1)
	a := startRuntime(t, "node-a", dir)

	client, err := a.Node.NewComponent(domain.Manifest{Component: "client", Required: []domain.Interface{calcIface}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Shutdown(ctx) })
	out, err := client.NewOutboundPort("calc-client", calcIface.ID)
	require.NoError(t, err)
	require.NoError(t, a.Node.Publish(ctx, out))

	err = a.Node.Connect(ctx, out.URI(), "nowhere", domain.NewConnectorSpec(domain.ConnectorForwarding))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
	assert.False(t, out.Connected())
}

func TestRuntime_Local(t *testing.T) {
	rt, err := app.NewRuntime(context.Background(), ports.NodeConfig{ID: "solo"}, app.Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.False(t, rt.Distributed())
	assert.Nil(t, rt.GatewayAddr())
	assert.Equal(t, "solo", rt.Node.ID())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, rt.Serve(ctx))
	assert.NoError(t, rt.Close())
}

func TestRuntime_Misconfigured(t *testing.T) {
	_, err := app.NewRuntime(context.Background(), ports.NodeConfig{Distributed: true, GatewayAddress: "127.0.0.1:0"}, app.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrRuntimeCreationFailed)
	assert.ErrorIs(t, err, domainerrors.ErrMisconfigured)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	unreachable := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = app.NewRuntime(context.Background(), ports.NodeConfig{
		Distributed:      true,
		GatewayAddress:   "127.0.0.1:0",
		DirectoryAddress: unreachable,
	}, app.Options{Logger: quietLogger()})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrTransport)
}
