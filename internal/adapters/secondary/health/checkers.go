package health

import (
	"context"
	"fmt"
)

// PingFunc probes a dependency. redisstore.Store.Ping has this shape.
type PingFunc func(ctx context.Context) error

// PingChecker adapts a PingFunc to ports.HealthChecker.
type PingChecker struct {
	name string
	ping PingFunc
}

// NewPingChecker names ping as component.
func NewPingChecker(component string, ping PingFunc) *PingChecker {
	return &PingChecker{name: component, ping: ping}
}

func (c *PingChecker) Component() string { return c.name }

func (c *PingChecker) CheckHealth(ctx context.Context) error {
	if c.ping == nil {
		return fmt.Errorf("no probe configured")
	}
	return c.ping(ctx)
}
