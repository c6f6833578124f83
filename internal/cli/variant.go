package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkobilansky/funnel-goat/internal/config"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

func newVariantCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variant",
		Short: "Add and adjust variation sets",
	}

	cmd.AddCommand(newVariantAddCmd(opts), newVariantSetCmd(opts))
	return cmd
}

func newVariantAddCmd(opts *rootOptions) *cobra.Command {
	var (
		landingPage string
		weight      int
		control     bool
	)

	cmd := &cobra.Command{
		Use:   "add <slug> <name>",
		Short: "Add a variation set to a campaign",
		Long: `Add a variation set (one landing page) to a campaign.

Mark one variation set per campaign with --control to make it the baseline
for significance. Without a control the variation set with the most
visitors is the baseline.

Examples:
  funnel-goat variant add launch A --landing-page lp-hero --control
  funnel-goat variant add launch B --landing-page lp-story --weight 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, name := args[0], strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("name must not be empty")
			}
			if weight < 1 {
				return fmt.Errorf("--weight must be >= 1")
			}

			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				ctx := context.Background()

				c, err := getCampaign(ctx, s, slug)
				if err != nil {
					return err
				}

				sets, err := s.ListVariationSets(ctx, c.ID, false)
				if err != nil {
					return fmt.Errorf("failed to list variation sets: %w", err)
				}
				for _, vs := range sets {
					if vs.Name == name {
						return fmt.Errorf("variation set '%s' already exists in campaign '%s'", name, slug)
					}
					if control && vs.Control {
						return fmt.Errorf("campaign '%s' already has a control: '%s'", slug, vs.Name)
					}
				}

				vs, err := s.AddVariationSet(ctx, &store.VariationSet{
					CampaignID:    c.ID,
					Name:          name,
					LandingPageID: landingPage,
					Weight:        weight,
					Active:        true,
					Control:       control,
				})
				if err != nil {
					return fmt.Errorf("failed to add variation set: %w", err)
				}

				suffix := ""
				if vs.Control {
					suffix = " [control]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added variation set '%s' to '%s': %s (weight %d)%s\n",
					vs.Name, slug, vs.LandingPageID, vs.Weight, suffix)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&landingPage, "landing-page", "", "landing page id rendered for this variation set (required)")
	cmd.Flags().IntVarP(&weight, "weight", "w", 1, "relative traffic weight")
	cmd.Flags().BoolVar(&control, "control", false, "use as the significance baseline")
	cmd.MarkFlagRequired("landing-page")

	return cmd
}

func newVariantSetCmd(opts *rootOptions) *cobra.Command {
	var (
		weight int
		active bool
	)

	cmd := &cobra.Command{
		Use:   "set <slug> <name>",
		Short: "Change a variation set's weight or active flag",
		Long: `Change the weight or active flag of a variation set.

Existing visitors keep their assignment; only new visitors see the new split.

Examples:
  funnel-goat variant set launch B --weight 1
  funnel-goat variant set launch A --active=false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, name := args[0], args[1]

			var weightPtr *int
			var activePtr *bool
			if cmd.Flags().Changed("weight") {
				if weight < 1 {
					return fmt.Errorf("--weight must be >= 1")
				}
				weightPtr = &weight
			}
			if cmd.Flags().Changed("active") {
				activePtr = &active
			}
			if weightPtr == nil && activePtr == nil {
				return fmt.Errorf("nothing to change: pass --weight and/or --active")
			}

			return opts.withStore(func(s *store.SQLiteStore, _ *config.Config) error {
				ctx := context.Background()

				vs, err := getVariationSet(ctx, s, slug, name)
				if err != nil {
					return err
				}

				if err := s.UpdateVariationSet(ctx, vs.ID, weightPtr, activePtr); err != nil {
					return fmt.Errorf("failed to update variation set: %w", err)
				}

				updated, err := s.GetVariationSet(ctx, vs.ID)
				if err != nil {
					return fmt.Errorf("failed to reload variation set: %w", err)
				}

				state := "active"
				if !updated.Active {
					state = "inactive"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Variation set '%s' in '%s': weight %d, %s\n",
					updated.Name, slug, updated.Weight, state)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&weight, "weight", "w", 1, "relative traffic weight")
	cmd.Flags().BoolVar(&active, "active", true, "serve this variation set to new visitors")

	return cmd
}

func getCampaign(ctx context.Context, s store.Store, slug string) (*store.Campaign, error) {
	c, err := s.GetCampaignBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("campaign '%s' not found", slug)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

func getVariationSet(ctx context.Context, s store.Store, slug, name string) (*store.VariationSet, error) {
	c, err := getCampaign(ctx, s, slug)
	if err != nil {
		return nil, err
	}

	sets, err := s.ListVariationSets(ctx, c.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list variation sets: %w", err)
	}
	for _, vs := range sets {
		if vs.Name == name {
			return vs, nil
		}
	}
	return nil, fmt.Errorf("variation set '%s' not found in campaign '%s'", name, slug)
}
