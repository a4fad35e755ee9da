package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
	"github.com/kestrel-docs/docindex/internal/search"
	"github.com/kestrel-docs/docindex/internal/store"
)

type searchOptions struct {
	topK   int
	method string
	json   bool
	docIDs []string
}

func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid vector+keyword search against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			queryText := args[0]
			for _, extra := range args[1:] {
				queryText += " " + extra
			}

			var filter *store.Filter
			if len(opts.docIDs) > 0 {
				f := store.NewFilter(opts.docIDs...)
				filter = &f
			}

			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				hits, err := a.Search(ctx, search.Query{
					Text:   queryText,
					TopK:   opts.topK,
					Method: search.Method(opts.method),
					Filter: filter,
				})
				if err != nil {
					return err
				}
				return printHits(cmd, hits, opts.json)
			})
		},
	}
	cmd.Flags().IntVar(&opts.topK, "top-k", 10, "number of results to return")
	cmd.Flags().StringVar(&opts.method, "method", string(search.MethodRRF), "fusion method: rrf, weighted, adaptive")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	cmd.Flags().StringSliceVar(&opts.docIDs, "doc-id", nil, "restrict the search to these document ids")
	return cmd
}

func printHits(cmd *cobra.Command, hits []search.Hit, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(out, "%2d. %-40s score=%.4f (vector #%d keyword #%d)\n  %s\n",
			i+1, h.ChunkID.Key(), h.Score, h.VectorRank, h.KeywordRank, snippet(h.Payload.Text, 160))
	}
	return nil
}

func snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
