package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/eventdesk/internal/config"
	"github.com/alfredjeanlab/eventdesk/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored event as JSONL",
	Long: `Export every stored event as JSONL, reading the store directly.

The store is configured the same way as for "evd serve". Without --out the
snapshot is written to stdout. With --push it is written once to every
export destination configured for the server instead.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		push, _ := cmd.Flags().GetBool("push")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := newLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		if push {
			dests := exportDestinations(ctx, cfg, logger)
			if len(dests) == 0 {
				return fmt.Errorf("no export destinations configured (set EVENTDESK_EXPORT_S3_BUCKET or EVENTDESK_EXPORT_FILE)")
			}
			return export.NewScheduler(st, dests, cfg.ExportInterval, logger).ExportOnce(ctx)
		}

		var w io.Writer = cmd.OutOrStdout()
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}
		if err := export.ExportJSONL(ctx, st, w); err != nil {
			return err
		}
		if out != "" && out != "-" {
			logger.Info("export written", slog.String("path", out))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write the snapshot to this file (default stdout)")
	exportCmd.Flags().Bool("push", false, "write once to the configured export destinations")
	exportCmd.MarkFlagsMutuallyExclusive("out", "push")
}
