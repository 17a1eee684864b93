// Package transport provides the connection plumbing shared by the junction
// services: a fixed-size TCP acceptor for the line protocols and the admin
// HTTP server.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ConnHandler serves one accepted connection. It owns conn and must close
// it before returning.
type ConnHandler func(ctx context.Context, conn net.Conn)

// FixedAcceptor accepts a fixed number of long-lived connections and runs a
// dedicated worker for each, drawn from a pool of that size.
type FixedAcceptor struct {
	n int

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewFixedAcceptor creates an acceptor for n connections.
func NewFixedAcceptor(n int) (*FixedAcceptor, error) {
	if n < 1 {
		return nil, fmt.Errorf("acceptor needs at least one connection, got %d", n)
	}
	return &FixedAcceptor{n: n, conns: make(map[net.Conn]struct{})}, nil
}

// Serve accepts exactly n connections on ln, then closes ln so further dials
// are refused. It returns once every handler has returned. Cancelling ctx
// closes ln and every open connection; the handlers see their reads fail.
// The returned error is non-nil only when accepting failed for another reason.
func (a *FixedAcceptor) Serve(ctx context.Context, ln net.Listener, handle ConnHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		a.closeAll()
	})
	defer stop()

	var g errgroup.Group
	g.SetLimit(a.n)

	var acceptErr error
	for accepted := 0; accepted < a.n; accepted++ {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = fmt.Errorf("accept: %w", err)
				cancel()
			}
			break
		}
		if !a.track(conn) {
			_ = conn.Close()
			break
		}
		g.Go(func() error {
			defer a.untrack(conn)
			handle(ctx, conn)
			return nil
		})
	}
	_ = ln.Close()

	_ = g.Wait()
	return acceptErr
}

// track records conn unless the acceptor is already stopping.
func (a *FixedAcceptor) track(conn net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns == nil {
		return false
	}
	a.conns[conn] = struct{}{}
	return true
}

func (a *FixedAcceptor) untrack(conn net.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, conn)
}

func (a *FixedAcceptor) closeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for conn := range a.conns {
		_ = conn.Close()
	}
	a.conns = nil
}
