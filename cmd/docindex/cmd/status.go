package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
	"github.com/kestrel-docs/docindex/internal/registry"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize document counts by state and the job queue's depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				report, err := a.Status(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "worker pool running: %v\n", report.WorkerPoolUp)
				fmt.Fprintf(out, "queue: pending=%d running=%d succeeded=%d failed=%d cancelled=%d\n",
					report.Queue.Pending, report.Queue.Running, report.Queue.Succeeded, report.Queue.Failed, report.Queue.Cancelled)
				fmt.Fprintln(out, "documents by state:")
				for _, state := range []registry.State{registry.Pending, registry.Parsing, registry.Indexing, registry.Ready, registry.Failed, registry.Removing} {
					if n := report.DocumentsByState[state]; n > 0 {
						fmt.Fprintf(out, "  %-10s %d\n", state, n)
					}
				}
				if report.DocumentsByState[registry.Failed] > 0 {
					return errPartialSuccess
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status report as JSON")
	return cmd
}
