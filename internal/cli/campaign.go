package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/gkobilansky/funnel-goat/internal/config"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

func newCampaignCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Create, list and deactivate campaigns",
	}

	cmd.AddCommand(newCampaignCreateCmd(opts), newCampaignListCmd(opts), newCampaignDeactivateCmd(opts))
	return cmd
}

func newCampaignCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		presentation string
		ctaText      string
		ctaURL       string
		ctaAppear    int
		landingPages string
	)

	cmd := &cobra.Command{
		Use:   "create <slug>",
		Short: "Create a new campaign",
		Long: `Create a campaign, optionally with one variation set per landing page.

Variation sets created with --landing-pages are named A, B, C... with
weight 1. Use 'variant add' for custom names, weights or a control.

Examples:
  funnel-goat campaign create launch --landing-pages "lp-hero,lp-story"
  funnel-goat campaign create launch --presentation webinar-1 \
    --cta-text "Book a call" --cta-url https://cal.example.com --cta-appear 1800`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := strings.TrimSpace(args[0])
			if slug == "" {
				return fmt.Errorf("slug must not be empty")
			}
			if ctaAppear < 0 {
				return fmt.Errorf("--cta-appear must be >= 0")
			}

			var pages []string
			for _, p := range strings.Split(landingPages, ",") {
				if p = strings.TrimSpace(p); p != "" {
					pages = append(pages, p)
				}
			}
			if len(pages) > 26 {
				return fmt.Errorf("at most 26 landing pages per create, got %d", len(pages))
			}

			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				ctx := context.Background()

				c, err := s.CreateCampaign(ctx, &store.Campaign{
					Slug:             slug,
					PresentationID:   presentation,
					CTAText:          ctaText,
					CTAURL:           ctaURL,
					CTAAppearSeconds: ctaAppear,
				})
				if err != nil {
					if errors.Is(err, store.ErrDuplicateSlug) {
						return fmt.Errorf("campaign '%s' already exists", slug)
					}
					return fmt.Errorf("failed to create campaign: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created campaign '%s'\n", c.Slug)

				for i, page := range pages {
					vs, err := s.AddVariationSet(ctx, &store.VariationSet{
						CampaignID:    c.ID,
						Name:          string(rune('A' + i)),
						LandingPageID: page,
						Weight:        1,
						Active:        true,
					})
					if err != nil {
						return fmt.Errorf("failed to add variation set for %s: %w", page, err)
					}
					fmt.Fprintf(out, "  %s: %s (weight %d)\n", vs.Name, vs.LandingPageID, vs.Weight)
				}

				if len(pages) == 0 {
					fmt.Fprintln(out, "No variation sets yet. Add one with:")
					fmt.Fprintf(out, "  funnel-goat variant add %s A --landing-page <id>\n", c.Slug)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&presentation, "presentation", "", "presentation (video) shown on every landing page")
	cmd.Flags().StringVar(&ctaText, "cta-text", "", "call-to-action button text")
	cmd.Flags().StringVar(&ctaURL, "cta-url", "", "call-to-action target URL")
	cmd.Flags().IntVar(&ctaAppear, "cta-appear", 0, "seconds into the presentation before the CTA appears")
	cmd.Flags().StringVar(&landingPages, "landing-pages", "", "comma-separated landing page ids, one variation set each")

	return cmd
}

func newCampaignListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				ctx := context.Background()

				campaigns, err := s.ListCampaigns(ctx)
				if err != nil {
					return fmt.Errorf("failed to list campaigns: %w", err)
				}

				if len(campaigns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No campaigns yet. Create one with: funnel-goat campaign create <slug>")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SLUG\tSTATE\tVARIANTS\tPRESENTATION\tCREATED")

				for _, c := range campaigns {
					sets, err := s.ListVariationSets(ctx, c.ID, false)
					if err != nil {
						return fmt.Errorf("failed to list variation sets for %s: %w", c.Slug, err)
					}

					active := 0
					for _, vs := range sets {
						if vs.Active {
							active++
						}
					}

					state := "ACTIVE"
					if !c.Active {
						state = "INACTIVE"
					}

					fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
						c.Slug,
						state,
						active, len(sets),
						c.PresentationID,
						c.CreatedAt.Format("2006-01-02"),
					)
				}

				return w.Flush()
			})
		},
	}
}

func newCampaignDeactivateCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "deactivate <slug>",
		Short: "Stop serving a campaign",
		Long: `Deactivate a campaign. Its data is kept and stays visible in reports;
new visitors get a 404 from /r/<slug>.

A running server picks the change up once its campaign cache expires.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]

			if !yes {
				prompt := promptui.Prompt{
					Label:     fmt.Sprintf("Deactivate campaign '%s'", slug),
					IsConfirm: true,
				}
				if _, err := prompt.Run(); err != nil {
					if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
						return nil
					}
					return err
				}
			}

			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				if err := s.SetCampaignActive(context.Background(), slug, false); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("campaign '%s' not found", slug)
					}
					return fmt.Errorf("failed to deactivate campaign: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Campaign '%s' deactivated.\n", slug)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
