package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
)

func newRemoveCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "remove <doc-id>",
		Short: "Remove a document from both indexes and the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			docID := args[0]
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				if async {
					job, err := a.EnqueueRemove(ctx, docID, 0)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "enqueued remove job %s for %s\n", job.JobID, docID)
					return nil
				}
				if err := a.Remove(ctx, docID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", docID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "enqueue the removal as a durable job instead of running it inline")
	return cmd
}
