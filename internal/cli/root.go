// Package cli implements the junction command line: the directory and
// barrier services, clients for both, and configuration tooling.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sufield/junction/internal/adapters/logging"
	"github.com/sufield/junction/internal/config"
	"github.com/sufield/junction/internal/core/ports"
)

const (
	flagConfig    = "config"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

// NewRootCommand builds the junction command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "junction",
		Short: "Run and drive the junction directory and barrier services",
		Long: `Run and drive the junction directory and barrier services.

Junction components find each other through the directory service, a
shared key/value map of published port locations, and start up in step
through the barrier service. This CLI serves both and offers one-shot
clients for inspection and scripting.

Settings come from --config, JUNCTION_* environment variables and flags,
in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP(flagConfig, "c", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().String(flagLogLevel, "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().String(flagLogFormat, "", "Log format: text or json")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	cmd.AddCommand(
		newDirectoryCommand(),
		newBarrierCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// flagBinding ties a command flag to a configuration key.
type flagBinding struct {
	key  string
	flag string
}

var globalBindings = []flagBinding{
	{key: "log.level", flag: flagLogLevel},
	{key: "log.format", flag: flagLogFormat},
}

// newLoader returns a loader for cmd with the global flags and the given
// command flags bound to their keys.
func newLoader(cmd *cobra.Command, bindings ...flagBinding) (*config.Loader, error) {
	loader := config.NewLoader()
	for _, b := range append(globalBindings, bindings...) {
		if err := loader.BindFlag(b.key, cmd.Flag(b.flag)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}
	return loader, nil
}

// loadConfig reads the configuration for cmd, letting the given flags
// override their keys, and builds the process logger from it.
func loadConfig(cmd *cobra.Command, bindings ...flagBinding) (*ports.Configuration, *slog.Logger, error) {
	loader, err := newLoader(cmd, bindings...)
	if err != nil {
		return nil, nil, err
	}

	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	logger, err := logging.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug("Configuration loaded", "file", used)
	}
	return cfg, logger, nil
}

// usageArgs wraps a cobra argument validator so its failures classify as
// usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		return nil
	}
}

// runtimeError classifies a service failure, keeping context cancellation
// distinguishable.
func runtimeError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRuntime, err)
}
