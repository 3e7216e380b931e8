package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/client"
	"github.com/alfredjeanlab/eventdesk/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the eventdesk service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx := cmd.Context()
		var status string
		if grpcAddr != "" {
			hc, err := client.NewHealthChecker(grpcAddr)
			if err != nil {
				return err
			}
			defer hc.Close()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if status, err = hc.Check(cctx, server.ServiceName); err != nil {
				return fmt.Errorf("checking health: %w", err)
			}
		} else {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			var err error
			if status, err = eventsClient.Health(cctx); err != nil {
				return fmt.Errorf("checking health: %w", err)
			}
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
		}

		if status != "ok" && status != "SERVING" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "check the gRPC health service at this address instead of HTTP")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "how long to wait for an answer")
}
