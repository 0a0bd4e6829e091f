// Command tripflow plans multi-day business trips. It serves the session
// API over HTTP, runs a session interactively in the terminal, and prunes
// stale sessions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tripflow/internal/config"
)

type rootOptions struct {
	configPath string
	settings   config.Settings
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tripflow",
		Short:         "Plan multi-day business trips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.settings = s
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml or json)")

	cmd.AddCommand(
		newServeCmd(opts),
		newPlanCmd(opts),
		newPruneCmd(opts),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
