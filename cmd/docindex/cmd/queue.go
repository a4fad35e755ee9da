package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
)

func newQueueCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "queue",
		Short: "Control and inspect the durable job queue's worker pool",
	}
	parent.AddCommand(newQueueStartCmd(), newQueueStopCmd(), newQueueStatusCmd(), newQueueClearCmd())
	return parent
}

func newQueueStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Recover in-progress intents, reclaim leased jobs, and run the worker pool until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// QueueStart launches the pool in a background goroutine; this
			// command holds the process open until SIGINT/SIGTERM, then
			// stops the pool cleanly before exiting.
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				if err := a.QueueStart(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "queue worker pool started, press ctrl-c to stop")

				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				<-sigCtx.Done()

				return a.QueueStop(context.Background())
			})
		},
	}
}

func newQueueStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker pool (no-op if this process doesn't hold it open)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				return a.QueueStop(ctx)
			})
		},
	}
}

func newQueueStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report queue depth by state and whether a worker pool is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				status, err := a.QueueStatus(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "running=%v pending=%d running_jobs=%d succeeded=%d failed=%d cancelled=%d\n",
					status.Running, status.Stats.Pending, status.Stats.Running, status.Stats.Succeeded, status.Stats.Failed, status.Stats.Cancelled)
				if status.Stats.Failed > 0 {
					return errPartialSuccess
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}

func newQueueClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Cancel every pending job, leaving running jobs alone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				n, err := a.QueueClear(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d jobs\n", n)
				return nil
			})
		},
	}
}
