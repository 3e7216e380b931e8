package main

import (
	"fmt"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/retry"
	"github.com/alfredjeanlab/eventdesk/internal/ui"
	"github.com/spf13/cobra"
)

var reprocessCmd = &cobra.Command{
	Use:     "reprocess <id>",
	Short:   "Move a failed event back to PENDING",
	GroupID: "retry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := eventsClient.Reprocess(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("reprocessing event %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ev)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reprocessing %s (%s)\n", ui.RenderAccent(ev.ID), ui.RenderStatus(ev.Status))
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:     "retry <id>",
	Short:   "Retry a failed event with an edited payload",
	GroupID: "retry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd)
		if err != nil {
			return err
		}
		if payload == "" {
			return fmt.Errorf("one of --payload or --payload-file is required")
		}
		format, _ := cmd.Flags().GetString("format")
		notes, _ := cmd.Flags().GetString("notes")

		resp, err := eventsClient.Retry(cmd.Context(), &model.RetryRequest{
			EventID:        args[0],
			UpdatedPayload: payload,
			PayloadFormat:  model.ParsePayloadFormat(format),
			UserNotes:      notes,
		})
		if err != nil {
			return fmt.Errorf("retrying event %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		fmt.Fprintf(out, "Retry %d/%d submitted for %s (%s)\n",
			resp.Event.RetryCount, retry.MaxRetries, ui.RenderAccent(resp.Event.ID), ui.RenderStatus(resp.Event.Status))
		if resp.Warning != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ui.RenderWarning("warning:"), resp.Warning)
		}
		return nil
	},
}

var republishCmd = &cobra.Command{
	Use:     "republish <id>",
	Short:   "Re-send the notification for an event's latest retry",
	Long:    "Re-send the retry notification when a retry was saved but its publish failed.",
	GroupID: "retry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := eventsClient.Republish(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("republishing retry of %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), msg)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Republished retry %d/%d for %s\n",
			msg.RetryAttempt, retry.MaxRetries, ui.RenderAccent(msg.EventID))
		return nil
	},
}

func init() {
	addPayloadFlags(retryCmd)
	retryCmd.Flags().String("format", "", "payload format (XML or JSON; defaults to the event's)")
	retryCmd.Flags().String("notes", "", "why the payload was changed")
}
