package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/config"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

func newSpendCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Record and list ad spend",
	}

	cmd.AddCommand(newSpendAddCmd(opts), newSpendListCmd(opts))
	return cmd
}

func newSpendAddCmd(opts *rootOptions) *cobra.Command {
	var (
		amount   int64
		date     string
		currency string
		platform string
	)

	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Record ad spend for a day",
		Long: `Record ad spend for a campaign. Amounts are in minor units (cents).

Examples:
  funnel-goat spend add launch --amount 25000 --platform facebook
  funnel-goat spend add launch --amount 12000 --date 2026-03-01 --currency eur`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			if amount < 0 {
				return fmt.Errorf("--amount must be >= 0")
			}

			spentOn := time.Now()
			if date != "" {
				d, err := analytics.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", date)
				}
				spentOn = d
			}

			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				ctx := context.Background()

				c, err := getCampaign(ctx, s, slug)
				if err != nil {
					return err
				}

				entry, err := s.AddAdSpend(ctx, &store.AdSpendEntry{
					CampaignID: c.ID,
					SpentOn:    spentOn,
					Amount:     amount,
					Currency:   currency,
					Platform:   platform,
				})
				if err != nil {
					return fmt.Errorf("failed to record spend: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s for '%s' on %s\n",
					formatMoney(entry.Amount), entry.Currency, slug, entry.SpentOn.Format("2006-01-02"))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units, e.g. cents (required)")
	cmd.Flags().StringVar(&date, "date", "", "day the money was spent (default today)")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code (default usd)")
	cmd.Flags().StringVar(&platform, "platform", "", "ad platform, e.g. facebook")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func newSpendListCmd(opts *rootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "list <slug>",
		Short: "List recorded ad spend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]

			window, err := analytics.ParseWindow(from, to)
			if err != nil {
				return err
			}

			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				ctx := context.Background()

				c, err := getCampaign(ctx, s, slug)
				if err != nil {
					return err
				}

				entries, err := s.ListAdSpend(ctx, c.ID, window)
				if err != nil {
					return fmt.Errorf("failed to list spend: %w", err)
				}

				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No ad spend recorded for '%s'.\n", slug)
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tAMOUNT\tCURRENCY\tPLATFORM")

				var total int64
				for _, e := range entries {
					total += e.Amount
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						e.SpentOn.Format("2006-01-02"),
						formatMoney(e.Amount),
						e.Currency,
						e.Platform,
					)
				}
				fmt.Fprintf(w, "TOTAL\t%s\t\t\n", formatMoney(total))

				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")

	return cmd
}
