package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/ui"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:     "submit",
	Short:   "Report an integration event",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		orderID, _ := cmd.Flags().GetString("order")
		status, _ := cmd.Flags().GetString("status")
		message, _ := cmd.Flags().GetString("message")
		errDetails, _ := cmd.Flags().GetString("error")
		integration, _ := cmd.Flags().GetString("integration")
		format, _ := cmd.Flags().GetString("format")

		payload, err := readPayload(cmd)
		if err != nil {
			return err
		}

		resp, err := eventsClient.Submit(cmd.Context(), &model.Event{
			ID:              id,
			OrderID:         orderID,
			Status:          model.ParseStatus(status),
			Message:         message,
			Payload:         payload,
			PayloadFormat:   model.ParsePayloadFormat(format),
			ErrorDetails:    errDetails,
			IntegrationName: integration,
		})
		if err != nil {
			return fmt.Errorf("submitting event: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		verb := "Updated"
		if resp.Created {
			verb = "Created"
		}
		fmt.Fprintf(out, "%s event %s (%s)\n", verb, ui.RenderAccent(resp.Event.ID), ui.RenderStatus(resp.Event.Status))
		if resp.Warning != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ui.RenderWarning("warning:"), resp.Warning)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().String("id", "", "event ID (updates the event when it exists)")
	submitCmd.Flags().String("order", "", "order ID (required)")
	submitCmd.Flags().String("status", "PENDING", "status (PENDING, SUCCESS, FAILED)")
	submitCmd.Flags().String("message", "", "status message")
	submitCmd.Flags().String("error", "", "error details for a FAILED event")
	submitCmd.Flags().String("integration", "", "integration name")
	submitCmd.Flags().String("format", "", "payload format (XML or JSON)")
	addPayloadFlags(submitCmd)
	_ = submitCmd.MarkFlagRequired("order")
}

// addPayloadFlags registers --payload and --payload-file on cmd.
func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().String("payload", "", "payload text")
	cmd.Flags().String("payload-file", "", `read the payload from a file ("-" for stdin)`)
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file")
}

// readPayload returns the payload given by --payload or --payload-file.
func readPayload(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("payload-file"); path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return "", fmt.Errorf("reading payload: %w", err)
		}
		return string(data), nil
	}
	payload, _ := cmd.Flags().GetString("payload")
	return payload, nil
}
