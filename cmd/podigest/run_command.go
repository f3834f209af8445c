package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"podigest/internal/logging"
	"podigest/internal/pipeline"
	"podigest/internal/scheduler"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduling daemon in the foreground",
		Long: `Run polls the podcast catalog and processes one eligible episode on the
configured cron schedules until interrupted. Only one daemon may run per data
directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), ctx, skipInitial)
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not run fetch and process immediately on startup")
	return cmd
}

func runDaemon(cmdCtx context.Context, ctx *commandContext, skipInitial bool) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfgCopy := *cfg
	cfgCopy.Logging.Level = ctx.logLevel(cfg)
	logger, err := logging.NewFromConfig(&cfgCopy)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("session_id", uuid.NewString()))

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	opts := p.SchedulerOptions()
	if skipInitial {
		opts.RunOnStart = false
	}
	s, err := scheduler.New(opts, logger)
	if err != nil {
		return err
	}
	logger.Info("podigest daemon starting",
		logging.String("config", ctx.configPath),
		logging.String("database", p.Store.Path()),
		logging.Bool("proxies", p.Pool != nil),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	if err := s.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("podigest daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}
