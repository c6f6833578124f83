package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show dashboard URL with access token",
		Long: `Show the dashboard URL with your access token.

Use this when you've scrolled past the startup message or need to
share the dashboard link.

Example:
  funnel-goat token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			token := cfg.DashboardToken
			if token == "" {
				data, err := os.ReadFile(cfg.TokenFile())
				if err != nil {
					if os.IsNotExist(err) {
						return fmt.Errorf("no server running. Start with: funnel-goat")
					}
					return fmt.Errorf("failed to read token file: %w", err)
				}
				token = strings.TrimSpace(string(data))
			}

			if token == "" {
				return fmt.Errorf("token file is empty. Restart the server with: funnel-goat")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dashboard: http://localhost:%d/dashboard?token=%s\n", cfg.Port, token)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Tip: Bookmark this URL or run 'funnel-goat token' anytime.")
			return nil
		},
	}
}
