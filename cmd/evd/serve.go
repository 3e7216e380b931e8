package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/config"
	"github.com/alfredjeanlab/eventdesk/internal/events"
	"github.com/alfredjeanlab/eventdesk/internal/export"
	"github.com/alfredjeanlab/eventdesk/internal/lifecycle"
	"github.com/alfredjeanlab/eventdesk/internal/metrics"
	"github.com/alfredjeanlab/eventdesk/internal/server"
	"github.com/alfredjeanlab/eventdesk/internal/store"
	"github.com/alfredjeanlab/eventdesk/internal/store/memory"
	"github.com/alfredjeanlab/eventdesk/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the eventdesk server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, err := newLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		logger.Info("store opened", "store", cfg.Store)

		// Metrics are exposed at /metrics on the HTTP listener.
		mp, metricsHandler, err := metrics.NewPrometheusProvider()
		if err != nil {
			st.Close()
			return err
		}
		recorder, err := metrics.New(mp)
		if err != nil {
			st.Close()
			return err
		}

		// Create the bus.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var (
			publisher events.Publisher
			bus       *events.NATSBus
		)
		if cfg.NATSURL != "" {
			bus, err = events.NewNATSBus(ctx, events.BusConfig{
				URL:             cfg.NATSURL,
				Stream:          cfg.NATSStream,
				SubjectPrefix:   cfg.SubjectPrefix,
				MaxDeliver:      cfg.MaxDeliver,
				BreakerFailures: cfg.BreakerFailures,
			}, logger)
			if err != nil {
				st.Close()
				return err
			}
			publisher = bus
			logger.Info("events enabled", "nats_url", cfg.NATSURL, "stream", cfg.NATSStream)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (EVENTDESK_NATS_URL not set)")
		}

		// Create server components.
		hub := server.NewHub()
		engine := lifecycle.New(st, publisher,
			lifecycle.WithLogger(logger),
			lifecycle.WithMetrics(recorder),
			lifecycle.WithTracer(metrics.NewTracer(nil)),
			lifecycle.WithStoreTimeout(cfg.StoreTimeout),
			lifecycle.WithPublishTimeout(cfg.PublishTimeout),
			lifecycle.WithOnChange(hub.Broadcast),
		)

		var stopConsume func()
		if bus != nil {
			stopConsume, err = engine.Consume(ctx, bus, cfg.ConsumerGroup)
			if err != nil {
				bus.Close()
				st.Close()
				return err
			}
		}

		srv := server.New(engine, hub, logger)
		grpcServer, healthServer := server.NewGRPCServer(logger)
		go server.WatchHealth(ctx, healthServer, engine, 0, logger)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			if stopConsume != nil {
				stopConsume()
			}
			publisher.Close()
			st.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Start HTTP server.
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metricsHandler)
		mux.Handle("/", srv.NewHTTPHandler(cfg.AuthToken))
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startExportScheduler(ctx, cfg, st, logger)

		logger.Info("eventdesk server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if stopConsume != nil {
			stopConsume()
			logger.Info("consumer stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		cancel()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := mp.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down meter provider", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// newLogger builds the server logger from the configured level and format.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StorePostgres:
		return postgres.New(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// exportDestinations returns the destinations enabled in cfg.
func exportDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []export.Destination {
	var dests []export.Destination

	if cfg.ExportS3Bucket != "" {
		s3Dest, err := export.NewS3Destination(ctx,
			cfg.ExportS3Bucket,
			cfg.ExportS3Key,
			cfg.ExportS3Region,
			cfg.ExportS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
		}
	}

	if cfg.ExportFile != "" {
		dests = append(dests, export.NewFileDestination(cfg.ExportFile))
		logger.Info("export file destination enabled", "path", cfg.ExportFile)
	}

	return dests
}

// startExportScheduler starts periodic export when an interval and at least
// one destination are configured. It returns nil otherwise.
func startExportScheduler(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) *export.Scheduler {
	if cfg.ExportInterval <= 0 {
		return nil
	}
	dests := exportDestinations(ctx, cfg, logger)
	if len(dests) == 0 {
		logger.Warn("export interval set but no destinations configured")
		return nil
	}
	scheduler := export.NewScheduler(st, dests, cfg.ExportInterval, logger)
	scheduler.Start()
	logger.Info("export scheduler started", "interval", cfg.ExportInterval)
	return scheduler
}
