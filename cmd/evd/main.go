package main

import (
	"os"
	"strings"

	"github.com/alfredjeanlab/eventdesk/internal/client"
	"github.com/alfredjeanlab/eventdesk/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool
	noColor    bool

	eventsClient client.EventsClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("EVENTDESK_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:          "evd <command>",
	Short:        "Track integration events and retry the ones that failed",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		} else {
			ui.Init()
		}
		eventsClient = client.NewHTTPClient(httpURL, strings.TrimSpace(authToken))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eventsClient != nil {
			eventsClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "eventdesk server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("EVENTDESK_AUTH_TOKEN"), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "retry", Title: "Recovery:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	// Events
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(failedCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)

	// Recovery
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(republishCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
