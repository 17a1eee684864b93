// Package config loads the junction configuration from a YAML file,
// JUNCTION_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/ports"
)

// EnvPrefix prefixes every environment override, e.g. JUNCTION_DIRECTORY_PARTICIPANTS.
const EnvPrefix = "JUNCTION"

// ErrConfigFileNotFound is returned when an explicitly named file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Loader reads configuration. Precedence, highest first: bound flags that
// were set, environment, file, defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader seeded with ports.DefaultConfiguration.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, ports.DefaultConfiguration())
	return &Loader{v: v}
}

// setDefaults registers every key so AutomaticEnv can see nested keys.
func setDefaults(v *viper.Viper, d *ports.Configuration) {
	v.SetDefault("node.id", d.Node.ID)
	v.SetDefault("node.distributed", d.Node.Distributed)
	v.SetDefault("node.gateway_address", d.Node.GatewayAddress)
	v.SetDefault("node.advertise_address", d.Node.AdvertiseAddress.String())
	v.SetDefault("node.directory_address", d.Node.DirectoryAddress)
	v.SetDefault("node.resolver_cache_size", d.Node.ResolverCacheSize)

	v.SetDefault("directory.address", d.Directory.Address)
	v.SetDefault("directory.participants", d.Directory.Participants)
	v.SetDefault("directory.store", d.Directory.Store)
	v.SetDefault("directory.redis.address", d.Directory.Redis.Address)
	v.SetDefault("directory.redis.password", d.Directory.Redis.Password)
	v.SetDefault("directory.redis.db", d.Directory.Redis.DB)
	v.SetDefault("directory.redis.prefix", d.Directory.Redis.Prefix)

	v.SetDefault("barrier.address", d.Barrier.Address)
	v.SetDefault("barrier.participants", d.Barrier.Participants)

	v.SetDefault("admin.address", d.Admin.Address)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("shutdown.grace_period", d.Shutdown.GracePeriod)
}

// BindFlag makes a set flag override key.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not defined", key)
	}
	if err := l.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("bind %s: %w", key, err)
	}
	return nil
}

// Load reads path (when non-empty), decodes and validates the result.
func (l *Loader) Load(path string) (*ports.Configuration, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || isNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &ports.Configuration{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		domain.LocationDecodeHook(),
	))
	if err := l.v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFileUsed reports the file Load read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Settings returns the merged settings as nested maps keyed like the file.
// Call it after Load.
func (l *Loader) Settings() map[string]any {
	return l.v.AllSettings()
}

// Load is a convenience for NewLoader().Load(path).
func Load(path string) (*ports.Configuration, error) {
	return NewLoader().Load(path)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
