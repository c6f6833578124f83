package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var format, goal, from, to string

	cmd := &cobra.Command{
		Use:   "export <slug>",
		Short: "Export aggregated campaign metrics",
		Long: `Export aggregated metrics in CSV (one row per variation set plus a
totals row) or JSON format.

Examples:
  funnel-goat export launch > launch.csv
  funnel-goat export launch --format json --from 2026-03-01 > launch.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]

			if format != "csv" && format != "json" {
				return fmt.Errorf("invalid format: must be 'csv' or 'json'")
			}

			window, err := analytics.ParseWindow(from, to)
			if err != nil {
				return err
			}

			return opts.withAnalytics(func(_ *store.SQLiteStore, svc *analytics.Service) error {
				a, err := svc.Campaign(context.Background(), slug, window, store.EventType(goal))
				if err != nil {
					if errors.Is(err, funnel.ErrCampaignNotFound) {
						return fmt.Errorf("campaign '%s' not found", slug)
					}
					return fmt.Errorf("failed to aggregate campaign: %w", err)
				}

				if format == "json" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(a)
				}
				return analytics.WriteCSV(cmd.OutOrStdout(), a)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv or json)")
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "conversion event for goal columns (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")

	return cmd
}
