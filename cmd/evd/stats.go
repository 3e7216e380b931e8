package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show event counts and success rate",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := eventsClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		summary, err := eventsClient.IntegrationSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting integration summary: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"stats":        snap,
				"integrations": summary,
			})
		}
		printStats(cmd.OutOrStdout(), snap, summary)
		return nil
	},
}
