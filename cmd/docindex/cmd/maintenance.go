package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
	"github.com/kestrel-docs/docindex/internal/registry"
)

func newMaintenanceCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "maintenance",
		Short: "Consistency checking and housekeeping across the registry, indexes, cache, and intent log",
	}
	parent.AddCommand(newConsistencyCheckCmd(), newRepairCmd(), newCleanupCmd())
	return parent
}

func newConsistencyCheckCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "consistency-check",
		Short: "Compare the registry against both indexes and report any mismatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				report, err := a.MaintenanceConsistencyCheck(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, report)
				}
				dirty := 0
				for docID, status := range report {
					if status != registry.Consistent {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", docID, status)
						dirty++
					}
				}
				if dirty == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "consistent")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d document(s) inconsistent; run `maintenance repair`\n", dirty)
				return errConsistencyDirty
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func newRepairCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Delete orphaned index entries and flag missing/inconsistent documents for re-ingest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				reports, err := a.MaintenanceRepair(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, reports)
				}
				if len(reports) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to repair")
					return nil
				}
				for _, r := range reports {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", r.DocID, r.Status, r.Action)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the repair report as JSON")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Sweep expired cache/fingerprint entries and compact the intent log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				report, err := a.MaintenanceCleanup(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, report)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "swept %d cache entries, %d fingerprint entries, compacted %d intents\n",
					report.CacheEntriesSwept, report.FingerprintEntriesSwept, report.IntentsCompacted)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cleanup report as JSON")
	return cmd
}

// errConsistencyDirty signals that a consistency-check found mismatches,
// mapping to ExitConsistencyDirty rather than a generic failure.
var errConsistencyDirty = fmt.Errorf("consistency check found mismatches")
