package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
	"github.com/kestrel-docs/docindex/internal/extract"
)

type ingestOptions struct {
	mode  string
	async bool
	json  bool
}

func newAddCmd() *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "add <source-id> <file>",
		Short: "Ingest a new document under source-id, reading its content from file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], args[1], opts, false)
		},
	}
	bindIngestFlags(cmd, opts)
	return cmd
}

func newUpdateCmd() *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "update <source-id> <file>",
		Short: "Re-ingest an already-registered source, reconciling it against its current content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], args[1], opts, true)
		},
	}
	bindIngestFlags(cmd, opts)
	return cmd
}

func bindIngestFlags(cmd *cobra.Command, opts *ingestOptions) {
	cmd.Flags().StringVar(&opts.mode, "mode", string(extract.ModeMarkdown), "source mode: markdown, datasheet, generic, auto")
	cmd.Flags().BoolVar(&opts.async, "async", false, "enqueue the ingest as a durable job instead of running it inline")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the resulting document record as JSON")
}

func runIngest(cmd *cobra.Command, sourceID, path string, opts *ingestOptions, isUpdate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	req := adminapi.IngestRequest{
		SourceID: sourceID,
		Content:  string(content),
		Mode:     extract.SourceMode(opts.mode),
		Size:     info.Size(),
		ModTime:  info.ModTime().Unix(),
	}

	return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
		if opts.async {
			priority := 0
			if isUpdate {
				priority = 1
			}
			job, err := a.EnqueueAdd(ctx, req, priority)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s job %s for %s\n", job.Kind, job.JobID, sourceID)
			return nil
		}

		var out any
		if isUpdate {
			r, err := a.Update(ctx, req)
			if err != nil {
				return err
			}
			out = r
		} else {
			r, err := a.Add(ctx, req)
			if err != nil {
				return err
			}
			out = r
		}

		if opts.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", out)
		return nil
	})
}
