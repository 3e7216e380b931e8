package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/stats"
	"github.com/alfredjeanlab/eventdesk/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printEventTable(w io.Writer, ev *model.Event) {
	fmt.Fprintf(w, "ID:           %s\n", ui.RenderAccent(ev.ID))
	fmt.Fprintf(w, "Order:        %s\n", ev.OrderID)
	fmt.Fprintf(w, "Status:       %s\n", ui.RenderStatus(ev.Status))
	if ev.IntegrationName != "" {
		fmt.Fprintf(w, "Integration:  %s\n", ev.IntegrationName)
	}
	if ev.Message != "" {
		fmt.Fprintf(w, "Message:      %s\n", ev.Message)
	}
	if ev.ErrorDetails != "" {
		fmt.Fprintf(w, "Error:        %s\n", ev.ErrorDetails)
	}
	fmt.Fprintf(w, "Retries:      %d\n", ev.RetryCount)
	if ev.PayloadFormat != "" {
		fmt.Fprintf(w, "Format:       %s\n", ev.PayloadFormat)
	}
	if !ev.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:   %s\n", ev.CreatedAt.Local().Format(timeLayout))
	}
	if !ev.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:   %s\n", ev.UpdatedAt.Local().Format(timeLayout))
	}
	if ev.Payload != "" {
		fmt.Fprintf(w, "\nPayload:\n%s\n", ev.Payload)
	}
	if ev.OriginalPayload != "" && ev.OriginalPayload != ev.Payload {
		fmt.Fprintf(w, "\nOriginal Payload:\n%s\n", ui.RenderMuted(ev.OriginalPayload))
	}
	if len(ev.RetryHistory) > 0 {
		fmt.Fprintln(w, "\nRetry History:")
		for _, h := range ev.RetryHistory {
			ts := h.Timestamp.Local().Format(timeLayout)
			if h.UserNotes != "" {
				fmt.Fprintf(w, "  #%d [%s] %s\n", h.RetryNumber, ts, h.UserNotes)
			} else {
				fmt.Fprintf(w, "  #%d [%s]\n", h.RetryNumber, ts)
			}
		}
	}
}

func printEventListTable(w io.Writer, list []*model.Event, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORDER\tSTATUS\tINTEGRATION\tRETRIES\tCREATED\tMESSAGE")
	for _, ev := range list {
		msg := ev.Message
		if ev.Status == model.StatusFailed && ev.ErrorDetails != "" {
			msg = ev.ErrorDetails
		}
		if len(msg) > 50 {
			msg = msg[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			ev.ID,
			ev.OrderID,
			ev.Status,
			ev.IntegrationName,
			ev.RetryCount,
			ev.CreatedAt.Local().Format(timeLayout),
			msg,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events (%d total)\n", len(list), total)
}

func printStats(w io.Writer, snap *stats.Snapshot, summary map[string]int) {
	fmt.Fprintf(w, "Total:        %d\n", snap.Total)
	fmt.Fprintf(w, "Success:      %d\n", snap.Success)
	fmt.Fprintf(w, "Failed:       %d\n", snap.Failed)
	fmt.Fprintf(w, "Pending:      %d\n", snap.Pending)
	fmt.Fprintf(w, "Success Rate: %.1f%%\n", snap.SuccessRatePercent)

	if len(summary) == 0 {
		return
	}
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "\nBy Integration:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%d\n", name, summary[name])
	}
	tw.Flush()
}

// printRetryNotice prints one retry notification received from the bus.
func printRetryNotice(w io.Writer, msg *model.RetryMessage) {
	ts := msg.RetryTimestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(w, "[%s] retry #%d of %s (order %s)",
		ts.Local().Format(timeLayout), msg.RetryAttempt, ui.RenderAccent(msg.EventID), msg.OrderID)
	if msg.UserNotes != "" {
		fmt.Fprintf(w, ": %s", msg.UserNotes)
	}
	fmt.Fprintln(w)
}
