package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tripflow/internal/config"
)

func newPruneCmd(root *rootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions that have been idle for too long",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := root.settings
			if s.Store.Driver == config.StoreMemory {
				return fmt.Errorf("prune needs a persistent store; store.driver is %s", s.Store.Driver)
			}
			age := olderThan
			if age <= 0 {
				age = s.SessionTTL
			}

			store, closeStore, err := openStore(s)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := store.Prune(time.Now().Add(-age))
			if err != nil {
				return fmt.Errorf("prune sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d session(s) idle for more than %s\n", n, age)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "idle age to prune (default session.ttl)")
	return cmd
}
