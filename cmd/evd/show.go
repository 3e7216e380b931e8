package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show details of an event",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		ev, err := eventsClient.GetEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("getting event %s: %w", id, err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ev)
		}
		printEventTable(cmd.OutOrStdout(), ev)
		return nil
	},
}
