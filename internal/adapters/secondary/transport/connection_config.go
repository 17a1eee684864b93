package transport

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/keepalive"
)

// Connection timeout constants.
const (
	defaultConnectTimeout     = 20 * time.Second
	developmentConnectTimeout = 5 * time.Second
)

// Backoff configuration constants.
const (
	defaultBackoffMultiplier   = 1.6
	defaultBackoffJitter       = 0.2
	defaultMaxBackoffDelay     = 60 * time.Second
	developmentMaxBackoffDelay = 5 * time.Second
	developmentBaseDelay       = 200 * time.Millisecond
)

// Keepalive constants.
const (
	defaultKeepaliveTime    = 30 * time.Second
	defaultKeepaliveTimeout = 10 * time.Second
)

const defaultMaxMessageSize = 4 * 1024 * 1024 // 4MB

// ConnectionConfig configures the gateway client connections a Linker opens.
// Calls are never retried by the client: obey-connection and invoke are not
// idempotent.
type ConnectionConfig struct {
	// Connection timeout for initial connection establishment
	ConnectTimeout time.Duration

	// Backoff configuration for reconnect attempts
	BackoffConfig backoff.Config

	// Keepalive parameters for connection health
	KeepaliveParams keepalive.ClientParameters

	// Maximum message sizes
	MaxRecvMsgSize int
	MaxSendMsgSize int
}

// DefaultConnectionConfig returns the production connection configuration.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		ConnectTimeout: defaultConnectTimeout,
		BackoffConfig: backoff.Config{
			BaseDelay:  1.0 * time.Second,
			Multiplier: defaultBackoffMultiplier,
			Jitter:     defaultBackoffJitter,
			MaxDelay:   defaultMaxBackoffDelay,
		},
		KeepaliveParams: keepalive.ClientParameters{
			Time:    defaultKeepaliveTime,
			Timeout: defaultKeepaliveTimeout,
			// connected ports may sit idle between calls
			PermitWithoutStream: true,
		},
		MaxRecvMsgSize: defaultMaxMessageSize,
		MaxSendMsgSize: defaultMaxMessageSize,
	}
}

// DevelopmentConnectionConfig reconnects quickly; suited to tests and local runs.
func DevelopmentConnectionConfig() *ConnectionConfig {
	config := DefaultConnectionConfig()
	config.ConnectTimeout = developmentConnectTimeout
	config.BackoffConfig.BaseDelay = developmentBaseDelay
	config.BackoffConfig.MaxDelay = developmentMaxBackoffDelay
	return config
}

// ToDialOptions converts the connection configuration to gRPC dial options.
func (c *ConnectionConfig) ToDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           c.BackoffConfig,
			MinConnectTimeout: c.ConnectTimeout,
		}),
		grpc.WithKeepaliveParams(c.KeepaliveParams),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(c.MaxSendMsgSize),
		),
	}
}
