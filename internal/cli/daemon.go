package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OrgWeave/OrgWeave/internal/config"
	"github.com/OrgWeave/OrgWeave/internal/services"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the orchestration engine and HITL timeout sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err := services.New(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svc.Engine.Start(ctx, cfg.Engine.Workers)
		go func() {
			if err := svc.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Scheduler stopped", "error", err)
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("Shutting down")
		cancel()
		svc.Engine.Wait()
		return nil
	},
}
