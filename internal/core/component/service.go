package component

import (
	"context"

	"github.com/sufield/junction/internal/core/domain"
)

// Data port method names. A pull interface must declare MethodPull and a push
// interface must declare MethodPush.
const (
	MethodPull = "get"
	MethodPush = "send"
)

// Service handles calls arriving on an inbound or two-way port.
type Service interface {
	Serve(ctx context.Context, req domain.Request) (domain.Response, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req domain.Request) (domain.Response, error)

// Serve calls f.
func (f ServiceFunc) Serve(ctx context.Context, req domain.Request) (domain.Response, error) {
	return f(ctx, req)
}

// DataProvider answers pulls arriving on an inbound data port.
type DataProvider interface {
	Pull(ctx context.Context) ([]byte, error)
}

// DataProviderFunc adapts a function to DataProvider.
type DataProviderFunc func(ctx context.Context) ([]byte, error)

// Pull calls f.
func (f DataProviderFunc) Pull(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// DataConsumer receives pushes arriving on an outbound data port.
type DataConsumer interface {
	Receive(ctx context.Context, payload []byte) error
}

// DataConsumerFunc adapts a function to DataConsumer.
type DataConsumerFunc func(ctx context.Context, payload []byte) error

// Receive calls f.
func (f DataConsumerFunc) Receive(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}
