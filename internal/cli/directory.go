package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/sufield/junction/internal/adapters/secondary/health"
	"github.com/sufield/junction/internal/adapters/secondary/redisstore"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/directory"
)

const (
	flagAddress      = "address"
	flagParticipants = "participants"
	flagStore        = "store"
	flagRedisAddress = "redis-address"
	flagAdminAddress = "admin-address"
	flagServer       = "server"
	flagTimeout      = "timeout"

	defaultClientTimeout = 10 * time.Second
)

func newDirectoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Serve or query the port directory",
		Long: `Serve or query the port directory.

The directory accepts a fixed number of participant connections and exits
once every participant has left. Each client subcommand below opens one
connection and therefore counts as one participant.`,
	}
	cmd.AddCommand(
		newDirectoryServeCommand(),
		newDirectoryPutCommand(),
		newDirectoryLookupCommand(),
		newDirectoryRemoveCommand(),
		newDirectoryShutdownCommand(),
	)
	return cmd
}

func newDirectoryServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the directory service",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runDirectoryServe,
	}
	cmd.Flags().String(flagAddress, "", "Listen address (directory.address)")
	cmd.Flags().Int(flagParticipants, 0, "Participant connections to accept (directory.participants)")
	cmd.Flags().String(flagStore, "", "Store backend: memory or redis (directory.store)")
	cmd.Flags().String(flagRedisAddress, "", "Redis address for the redis store (directory.redis.address)")
	cmd.Flags().String(flagAdminAddress, "", "Admin HTTP address for /metrics and /healthz (admin.address)")
	return cmd
}

func runDirectoryServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd,
		flagBinding{key: "directory.address", flag: flagAddress},
		flagBinding{key: "directory.participants", flag: flagParticipants},
		flagBinding{key: "directory.store", flag: flagStore},
		flagBinding{key: "directory.redis.address", flag: flagRedisAddress},
		flagBinding{key: "admin.address", flag: flagAdminAddress},
	)
	if err != nil {
		return err
	}

	run := newServiceRun(cfg, logger)

	store, err := openStore(cmd.Context(), cfg.Directory, run)
	if err != nil {
		return err
	}
	run.shutdown.RegisterClient(store)

	srv, err := directory.NewServer(directory.Config{
		Participants: cfg.Directory.Participants,
		Store:        store,
		Logger:       logger,
		Metrics:      run.metrics,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return run.run(cmd.Context(), func(ctx context.Context) error {
		return srv.ListenAndServe(ctx, cfg.Directory.Address)
	})
}

// openStore builds the configured store. A Redis store must answer a ping
// before the service starts, and stays under health monitoring afterwards.
func openStore(ctx context.Context, cfg ports.DirectoryConfig, run *serviceRun) (ports.DirectoryStore, error) {
	if cfg.Store != ports.StoreRedis {
		return directory.NewMemoryStore(), nil
	}

	store := redisstore.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
		redisstore.WithPrefix(cfg.Redis.Prefix))

	pingCtx, cancel := context.WithTimeout(ctx, defaultClientTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: redis store at %s: %w", ErrRuntime, cfg.Redis.Address, err)
	}
	if err := run.monitor.RegisterChecker(health.NewPingChecker("directory-store", store.Ping)); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	run.logger.Info("Using redis directory store", "address", cfg.Redis.Address, "prefix", cfg.Redis.Prefix)
	return store, nil
}

// addClientFlags adds the flags shared by one-shot directory clients.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagServer, "", "Directory address (default node.directory_address, else directory.address)")
	cmd.Flags().Duration(flagTimeout, defaultClientTimeout, "Deadline for the whole exchange")
}

// withDirectory connects to the directory, runs fn and closes the connection.
func withDirectory(cmd *cobra.Command, fn func(ctx context.Context, c *directory.Client) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	server, _ := cmd.Flags().GetString(flagServer)
	if server == "" {
		server = directoryTarget(cfg)
	}
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := directory.Dial(ctx, server)
	if err != nil {
		return runtimeError(err)
	}
	defer func() { _ = client.Close() }()
	return fn(ctx, client)
}

// directoryTarget picks the address a client dials when --server is not
// given.
func directoryTarget(cfg *ports.Configuration) string {
	if cfg.Node.DirectoryAddress != "" {
		return cfg.Node.DirectoryAddress
	}
	return listenTarget(cfg.Directory.Address)
}

// listenTarget turns a listen address into one a local client can dial. A
// missing or wildcard host means the local machine.
func listenTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func newDirectoryPutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Bind a key to a value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, c *directory.Client) error {
				if err := c.Put(ctx, args[0], args[1]); err != nil {
					return runtimeError(err)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "bound %s\n", args[0])
				return err
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newDirectoryLookupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <key>",
		Short: "Print the value bound to a key",
		Long: `Print the value bound to a key.

An unbound key prints nothing and exits with the not-found status.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, c *directory.Client) error {
				result, err := c.Lookup(ctx, args[0])
				if err != nil {
					return runtimeError(err)
				}
				if !result.Found {
					return fmt.Errorf("%w: key %q is not bound", ErrNotFound, args[0])
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Value)
				return err
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newDirectoryRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <key>",
		Short: "Unbind a key",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, c *directory.Client) error {
				if err := c.Remove(ctx, args[0]); err != nil {
					return runtimeError(err)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return err
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newDirectoryShutdownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Leave the directory as one participant",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDirectory(cmd, func(ctx context.Context, c *directory.Client) error {
				if err := c.Shutdown(ctx); err != nil {
					return runtimeError(err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "left directory")
				return err
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}
