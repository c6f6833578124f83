package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

const barWidth = 40

func newDropOffCmd(opts *rootOptions) *cobra.Command {
	var (
		bucket   int
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "dropoff <slug>",
		Short: "Show how long viewers keep watching the presentation",
		Long: `Show the share of viewers who started the presentation and were still
watching at each point in time.

Example:
  funnel-goat dropoff launch --bucket 60`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			if bucket < 1 {
				return fmt.Errorf("--bucket must be >= 1")
			}

			window, err := analytics.ParseWindow(from, to)
			if err != nil {
				return err
			}

			return opts.withAnalytics(func(_ *store.SQLiteStore, svc *analytics.Service) error {
				points, err := svc.DropOff(context.Background(), slug, window, bucket)
				if err != nil {
					if errors.Is(err, funnel.ErrCampaignNotFound) {
						return fmt.Errorf("campaign '%s' not found", slug)
					}
					return fmt.Errorf("failed to build drop-off: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(points) == 0 {
					fmt.Fprintf(out, "No one has started the presentation for '%s' yet.\n", slug)
					return nil
				}

				for _, p := range points {
					n := int(p.StillWatchingPercent/100*barWidth + 0.5)
					fmt.Fprintf(out, "%3d:%02d  %6.1f%%  %s\n",
						p.TimeSeconds/60, p.TimeSeconds%60,
						p.StillWatchingPercent,
						strings.Repeat("█", n))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&bucket, "bucket", "b", 30, "bucket size in seconds")
	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")

	return cmd
}
