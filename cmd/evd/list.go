package main

import (
	"fmt"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/client"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List events, newest first",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := listRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		return runList(cmd, req)
	},
}

var failedCmd = &cobra.Command{
	Use:     "failed",
	Short:   "List failed events",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return runList(cmd, &client.ListEventsRequest{Status: "FAILED", Limit: limit})
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "filter by status (PENDING, SUCCESS, FAILED)")
	listCmd.Flags().String("order", "", "filter by exact order ID")
	listCmd.Flags().String("search", "", "filter by order ID substring")
	listCmd.Flags().String("integration", "", "filter by integration name")
	listCmd.Flags().Duration("since", 0, "only events created within this long ago (e.g. 24h)")
	listCmd.Flags().Int("limit", 0, "maximum number of events")

	failedCmd.Flags().Int("limit", 0, "maximum number of events")
}

func listRequestFromFlags(cmd *cobra.Command) (*client.ListEventsRequest, error) {
	status, _ := cmd.Flags().GetString("status")
	order, _ := cmd.Flags().GetString("order")
	search, _ := cmd.Flags().GetString("search")
	integration, _ := cmd.Flags().GetString("integration")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")

	if limit < 0 {
		return nil, fmt.Errorf("--limit must not be negative")
	}
	req := &client.ListEventsRequest{
		Status:      status,
		OrderID:     order,
		Search:      search,
		Integration: integration,
		Limit:       limit,
	}
	if since > 0 {
		req.After = time.Now().Add(-since)
	}
	return req, nil
}

func runList(cmd *cobra.Command, req *client.ListEventsRequest) error {
	resp, err := eventsClient.ListEvents(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), resp.Events)
	}
	printEventListTable(cmd.OutOrStdout(), resp.Events, resp.Total)
	return nil
}
