package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/client"
	"github.com/alfredjeanlab/eventdesk/internal/events"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream event changes as they happen",
	Long: `Stream event changes from the server.

By default changes are read from the server's event stream. With --nats-url
(or EVENTDESK_NATS_URL) the command instead listens for retry notifications
published on the bus.`,
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		prefix, _ := cmd.Flags().GetString("prefix")
		topics, _ := cmd.Flags().GetStringSlice("topics")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchRetries(ctx, cmd.OutOrStdout(), natsURL, prefix)
		}
		return watchStream(ctx, cmd.OutOrStdout(), topics)
	},
}

// watchStream prints every change the server streams until ctx is done.
func watchStream(ctx context.Context, w io.Writer, topics []string) error {
	err := eventsClient.Stream(ctx, topics, func(se client.StreamEvent) error {
		return printStreamEvent(w, se)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("streaming events: %w", err)
	}
	return nil
}

func printStreamEvent(w io.Writer, se client.StreamEvent) error {
	if jsonOutput {
		fmt.Fprintln(w, string(se.Data))
		return nil
	}
	var ev model.Event
	if err := json.Unmarshal(se.Data, &ev); err != nil {
		return fmt.Errorf("decoding %s: %w", se.Topic, err)
	}
	ts := ev.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(w, "[%s] %-18s %s  order=%s  %s",
		ts.Local().Format(timeLayout),
		strings.TrimPrefix(se.Topic, "event."),
		ui.RenderAccent(ev.ID),
		ev.OrderID,
		ui.RenderStatus(ev.Status),
	)
	if ev.Status == model.StatusFailed && ev.ErrorDetails != "" {
		fmt.Fprintf(w, "  %s", ev.ErrorDetails)
	}
	fmt.Fprintln(w)
	return nil
}

// watchRetries subscribes to the retry topic on the bus and prints each
// notification.
func watchRetries(ctx context.Context, w io.Writer, natsURL, prefix string) error {
	watcher, err := events.NewWatcher(natsURL, prefix,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ch, cancel, err := watcher.Watch(events.TopicRetry)
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Fprintln(os.Stderr, ui.RenderMuted("watching "+events.Subject(prefix, events.TopicRetry)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Fprintln(w, string(data))
				continue
			}
			var msg model.RetryMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("skipping malformed retry message: %v", err)
				continue
			}
			printRetryNotice(w, &msg)
		}
	}
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("EVENTDESK_NATS_URL"), "watch retry notifications on this NATS server")
	watchCmd.Flags().String("prefix", "eventdesk", "NATS subject prefix")
	watchCmd.Flags().StringSlice("topics", nil, "stream topics to watch (e.g. event.retried, event.*)")
}
