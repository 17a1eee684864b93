// Package ports defines the interfaces (ports) between the junction core and
// its adapters, and the configuration model the adapters are built from.
package ports

import (
	"fmt"
	"strings"
	"time"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Store backends for the directory service.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Configuration is the complete configuration for a junction process.
// Expected participant counts are deployment facts: they are read here and
// handed to the services at construction.
type Configuration struct {
	Node      NodeConfig      `mapstructure:"node"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Barrier   BarrierConfig   `mapstructure:"barrier"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	Shutdown  ShutdownConfig  `mapstructure:"shutdown"`
}

// NodeConfig describes this process as a host for component ports.
type NodeConfig struct {
	// ID names the process in logs. Defaults to the hostname.
	ID string `mapstructure:"id"`

	// Distributed marks the deployment as spanning processes. When false, a
	// connect to a URI missing from the local registry is a configuration error.
	Distributed bool `mapstructure:"distributed"`

	// GatewayAddress is where this process serves remote port calls.
	GatewayAddress string `mapstructure:"gateway_address" validate:"omitempty,listen_addr"`

	// AdvertiseAddress is the location other processes dial to reach the
	// gateway. Defaults to GatewayAddress when that names a host.
	AdvertiseAddress domain.Location `mapstructure:"advertise_address"`

	// DirectoryAddress is the directory service used to publish and resolve ports.
	DirectoryAddress string `mapstructure:"directory_address" validate:"omitempty,hostport"`

	// ResolverCacheSize bounds the resolved-location cache. Zero disables it.
	ResolverCacheSize int `mapstructure:"resolver_cache_size" validate:"min=0"`
}

// Advertise returns the location published for this node's ports.
func (n NodeConfig) Advertise() domain.Location {
	if !n.AdvertiseAddress.IsZero() {
		return n.AdvertiseAddress
	}
	loc, err := domain.ParseLocation(n.GatewayAddress)
	if err != nil {
		return domain.Location{}
	}
	return loc
}

// DirectoryConfig configures the directory service.
type DirectoryConfig struct {
	Address      string      `mapstructure:"address" validate:"required,listen_addr"`
	Participants int         `mapstructure:"participants" validate:"min=1"`
	Store        string      `mapstructure:"store" validate:"oneof=memory redis"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the Redis directory store.
type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"omitempty,hostport"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	Prefix   string `mapstructure:"prefix"`
}

// BarrierConfig configures the barrier service.
type BarrierConfig struct {
	Address      string `mapstructure:"address" validate:"required,listen_addr"`
	Participants int    `mapstructure:"participants" validate:"min=1"`
}

// AdminConfig configures the admin HTTP endpoint. An empty address disables it.
type AdminConfig struct {
	Address string `mapstructure:"address" validate:"omitempty,listen_addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// ShutdownConfig configures graceful shutdown.
type ShutdownConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"min=0"`
}

// DefaultConfiguration returns the configuration used when no file is given.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Directory: DirectoryConfig{
			Address:      ":7500",
			Participants: 1,
			Store:        StoreMemory,
			Redis:        RedisConfig{Prefix: "junction:directory:"},
		},
		Barrier: BarrierConfig{
			Address:      ":7600",
			Participants: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Shutdown: ShutdownConfig{
			GracePeriod: 30 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid and returns any validation errors.
func (c *Configuration) Validate() error {
	if c == nil {
		return &errors.ValidationError{
			Field:   "configuration",
			Value:   nil,
			Message: "configuration cannot be nil",
		}
	}

	if err := domain.ValidateStruct(c); err != nil {
		converted := domain.ConvertValidationErrors(err)
		if len(converted) == 0 {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		first := converted[0]
		return &errors.ValidationError{
			Field:   fieldPath(first.Field),
			Value:   first.Value,
			Message: first.Message,
		}
	}

	if c.Node.Distributed {
		if c.Node.GatewayAddress == "" {
			return &errors.ValidationError{
				Field:   "node.gateway_address",
				Value:   "",
				Message: "distributed nodes require a gateway address",
			}
		}
		if c.Node.Advertise().IsZero() {
			return &errors.ValidationError{
				Field:   "node.advertise_address",
				Value:   c.Node.GatewayAddress,
				Message: "distributed nodes need a dialable advertise address",
			}
		}
		if c.Node.DirectoryAddress == "" {
			return &errors.ValidationError{
				Field:   "node.directory_address",
				Value:   "",
				Message: "distributed nodes require a directory address",
			}
		}
	}

	if c.Directory.Store == StoreRedis && c.Directory.Redis.Address == "" {
		return &errors.ValidationError{
			Field:   "directory.redis.address",
			Value:   "",
			Message: "redis store requires an address",
		}
	}

	return nil
}

// fieldPath turns a validator namespace such as "Configuration.Directory.Participants"
// into the dotted config key "directory.participants".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = toSnake(p)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
