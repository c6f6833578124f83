package cli

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var port int

	rootCmd := &cobra.Command{
		Use:   "funnel-goat",
		Short: "Funnel Goat - split tests and funnel analytics for course launches",
		Long: `🐐 Funnel Goat splits landing-page traffic between variation sets,
records the funnel (views, registrations, watch progress, clicks, calls,
sales) and reports which variation set is winning.
Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'funnel-goat serve').`,
		SilenceUsage: true,
		// Default action is to start server
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, port)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config and FG_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newCampaignCmd(opts),
		newVariantCmd(opts),
		newSpendCmd(opts),
		newReportCmd(opts),
		newDropOffCmd(opts),
		newExportCmd(opts),
		newTokenCmd(opts),
	)

	return rootCmd
}

func Execute() error {
	return newRootCmd().Execute()
}
