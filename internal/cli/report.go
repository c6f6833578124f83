package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/stats"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var goal, from, to string

	cmd := &cobra.Command{
		Use:   "report [slug]",
		Short: "Show the funnel and significance report for a campaign",
		Long: `Show per-variation-set funnel counts, revenue, cost metrics and the
significance verdict against the baseline.

Without a slug you pick the campaign from a list.

Examples:
  funnel-goat report launch
  funnel-goat report launch --goal cta_click --from 2026-03-01 --to 2026-03-31`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := analytics.ParseWindow(from, to)
			if err != nil {
				return err
			}

			return opts.withAnalytics(func(s *store.SQLiteStore, svc *analytics.Service) error {
				ctx := context.Background()

				var slug string
				if len(args) == 1 {
					slug = args[0]
				} else {
					slug, err = pickCampaign(ctx, s)
					if err != nil || slug == "" {
						return err
					}
				}

				a, err := svc.Campaign(ctx, slug, window, store.EventType(goal))
				if err != nil {
					if errors.Is(err, funnel.ErrCampaignNotFound) {
						return fmt.Errorf("campaign '%s' not found", slug)
					}
					return fmt.Errorf("failed to build report: %w", err)
				}

				return printReport(cmd.OutOrStdout(), a)
			})
		},
	}

	cmd.Flags().StringVarP(&goal, "goal", "g", "", "conversion event to test significance on (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")

	return cmd
}

func pickCampaign(ctx context.Context, s store.Store) (string, error) {
	campaigns, err := s.ListCampaigns(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		return "", fmt.Errorf("no campaigns yet. Create one with: funnel-goat campaign create <slug>")
	}

	slugs := make([]string, len(campaigns))
	for i, c := range campaigns {
		slugs[i] = c.Slug
	}

	prompt := promptui.Select{
		Label: "Campaign",
		Items: slugs,
		Size:  10,
	}

	_, slug, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return slug, nil
}

func printReport(out io.Writer, a *analytics.CampaignAnalytics) error {
	state := "ACTIVE"
	if !a.Campaign.Active {
		state = "INACTIVE"
	}

	fmt.Fprintf(out, "CAMPAIGN: %s\n", a.Slug)
	fmt.Fprintf(out, "STATE: %s\n", state)
	fmt.Fprintf(out, "GOAL: %s\n", a.Goal)
	fmt.Fprintf(out, "CREATED: %s\n", a.Campaign.CreatedAt.Format("2006-01-02"))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tVISITORS\tREG\tPLAY\tDONE\tCTA\tCALLS\tSALES\tREVENUE\tGOAL RATE\t95% CI\tVERDICT")

	for _, v := range a.Variants {
		name := v.Name
		if len(name) > 16 {
			name = name[:13] + "..."
		}

		ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", v.GoalCILower, v.GoalCIUpper)
		if v.Visitors == 0 {
			ciStr = "N/A"
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			name,
			formatNumber(v.Visitors),
			v.Registrations,
			v.PlayStarts,
			v.Completions,
			v.CTAClicks,
			v.CallsBooked,
			v.Sales,
			formatMoney(v.Revenue),
			formatPercent(v.GoalRate),
			ciStr,
			verdict(v),
		)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, strings.Repeat("─", 60))
	t := a.Totals
	fmt.Fprintf(out, "Visitors: %s  Registrations: %d (%s)  Sales: %d  Revenue: %s\n",
		formatNumber(t.Visitors), t.Registrations, formatPercent(t.Rates.Registration), t.Sales, formatMoney(t.Revenue))

	roi := "n/a"
	if t.ROI != nil {
		roi = formatMoney(*t.ROI)
	}
	fmt.Fprintf(out, "Ad spend: %s  Cost/registration: %s  Cost/sale: %s  ROI: %s\n",
		formatMoney(t.AdSpend), formatOptionalMoney(t.CostPerRegistration), formatOptionalMoney(t.CostPerSale), roi)

	return nil
}

func verdict(v analytics.VariantMetrics) string {
	if v.Baseline {
		return "baseline"
	}
	switch v.Confidence {
	case stats.Winner:
		return fmt.Sprintf("WINNER (%.1f%% confident)", v.Level*100)
	case stats.Trending:
		return fmt.Sprintf("trending (%.1f%%)", v.Level*100)
	default:
		return "need more data"
	}
}
