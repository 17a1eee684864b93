package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sufield/junction/internal/barrier"
	"github.com/sufield/junction/internal/core/domain"
)

const (
	flagID       = "id"
	flagCallback = "callback"
	flagRounds   = "rounds"
)

func newBarrierCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "barrier",
		Short: "Serve or join the startup barrier",
	}
	cmd.AddCommand(newBarrierServeCommand(), newBarrierAwaitCommand())
	return cmd
}

func newBarrierServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the barrier service",
		Long: `Run the barrier service.

Each round releases once every expected participant has registered. The
service exits once every participant has disconnected.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runBarrierServe,
	}
	cmd.Flags().String(flagAddress, "", "Listen address (barrier.address)")
	cmd.Flags().Int(flagParticipants, 0, "Participants per round (barrier.participants)")
	cmd.Flags().String(flagAdminAddress, "", "Admin HTTP address for /metrics and /healthz (admin.address)")
	return cmd
}

func runBarrierServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd,
		flagBinding{key: "barrier.address", flag: flagAddress},
		flagBinding{key: "barrier.participants", flag: flagParticipants},
		flagBinding{key: "admin.address", flag: flagAdminAddress},
	)
	if err != nil {
		return err
	}

	run := newServiceRun(cfg, logger)
	srv, err := barrier.NewServer(barrier.Config{
		Participants: cfg.Barrier.Participants,
		Logger:       logger,
		Metrics:      run.metrics,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	err = run.run(cmd.Context(), func(ctx context.Context) error {
		return srv.ListenAndServe(ctx, cfg.Barrier.Address)
	})
	logger.Info("Barrier service finished", "rounds", srv.Rounds())
	return err
}

func newBarrierAwaitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "await",
		Short: "Join the barrier and wait for release",
		Long: `Join the barrier and wait for release.

Blocks until the service releases the round, once per --rounds. Use it in
start scripts to hold a process until its peers are up.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runBarrierAwait,
	}
	cmd.Flags().String(flagServer, "", "Barrier address (default derived from barrier.address)")
	cmd.Flags().String(flagID, "", "Participant id, unique per round")
	cmd.Flags().String(flagCallback, "", "host:port this participant advertises")
	cmd.Flags().Int(flagRounds, 1, "Rounds to wait through")
	cmd.Flags().Duration(flagTimeout, 0, "Give up after this long (0 waits forever)")
	return cmd
}

func runBarrierAwait(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString(flagID)
	rounds, _ := cmd.Flags().GetInt(flagRounds)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)
	rawCallback, _ := cmd.Flags().GetString(flagCallback)
	if id == "" || rawCallback == "" {
		return fmt.Errorf("%w: --%s and --%s are required", ErrUsage, flagID, flagCallback)
	}
	if rounds < 1 {
		return fmt.Errorf("%w: --%s must be at least 1", ErrUsage, flagRounds)
	}
	callback, err := domain.ParseLocation(rawCallback)
	if err != nil {
		return fmt.Errorf("%w: --%s: %v", ErrUsage, flagCallback, err)
	}
	server, _ := cmd.Flags().GetString(flagServer)
	if server == "" {
		server = listenTarget(cfg.Barrier.Address)
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p, err := barrier.Join(ctx, server, id, callback)
	if err != nil {
		return runtimeError(err)
	}
	defer func() { _ = p.Close() }()

	for round := 1; round <= rounds; round++ {
		start := time.Now()
		if err := p.Await(ctx); err != nil {
			return runtimeError(err)
		}
		logger.Debug("Barrier released", "id", id, "round", round, "waited", time.Since(start))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "released round %d\n", round); err != nil {
			return err
		}
	}
	return nil
}
