package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	DatabaseURL string // EVENTDESK_DATABASE_URL (required for the postgres store)
	Store       string // EVENTDESK_STORE (default "postgres"; "memory" for development)
	GRPCAddr    string // EVENTDESK_GRPC_ADDR (default ":9090")
	HTTPAddr    string // EVENTDESK_HTTP_ADDR (default ":8080")
	AuthToken   string // EVENTDESK_AUTH_TOKEN (optional, empty = auth disabled)

	// Bus settings
	NATSURL         string // EVENTDESK_NATS_URL (optional, empty = no bus)
	NATSStream      string // EVENTDESK_NATS_STREAM (default "EVENTDESK")
	SubjectPrefix   string // EVENTDESK_NATS_SUBJECT_PREFIX (default "eventdesk")
	ConsumerGroup   string // EVENTDESK_CONSUMER_GROUP (default "eventdesk-ingest")
	MaxDeliver      int    // EVENTDESK_MAX_DELIVER (default 10)
	BreakerFailures uint32 // EVENTDESK_BREAKER_FAILURES (default 5)

	StoreTimeout   time.Duration // EVENTDESK_STORE_TIMEOUT (default 5s)
	PublishTimeout time.Duration // EVENTDESK_PUBLISH_TIMEOUT (default 5s)

	// Export settings
	ExportInterval   time.Duration // EVENTDESK_EXPORT_INTERVAL (default 0 = disabled)
	ExportS3Bucket   string        // EVENTDESK_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // EVENTDESK_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // EVENTDESK_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // EVENTDESK_EXPORT_S3_KEY (default "eventdesk/events.jsonl")
	ExportFile       string        // EVENTDESK_EXPORT_FILE (enables the local file destination when set)

	LogLevel  string // EVENTDESK_LOG_LEVEL (default "info")
	LogFormat string // EVENTDESK_LOG_FORMAT (default "text"; or "json")
}

// fileConfig mirrors Config in the optional TOML file named by
// EVENTDESK_CONFIG. Environment variables take precedence over it.
type fileConfig struct {
	DatabaseURL      string `toml:"database_url"`
	Store            string `toml:"store"`
	GRPCAddr         string `toml:"grpc_addr"`
	HTTPAddr         string `toml:"http_addr"`
	AuthToken        string `toml:"auth_token"`
	NATSURL          string `toml:"nats_url"`
	NATSStream       string `toml:"nats_stream"`
	SubjectPrefix    string `toml:"nats_subject_prefix"`
	ConsumerGroup    string `toml:"consumer_group"`
	MaxDeliver       string `toml:"max_deliver"`
	BreakerFailures  string `toml:"breaker_failures"`
	StoreTimeout     string `toml:"store_timeout"`
	PublishTimeout   string `toml:"publish_timeout"`
	ExportInterval   string `toml:"export_interval"`
	ExportS3Bucket   string `toml:"export_s3_bucket"`
	ExportS3Endpoint string `toml:"export_s3_endpoint"`
	ExportS3Region   string `toml:"export_s3_region"`
	ExportS3Key      string `toml:"export_s3_key"`
	ExportFile       string `toml:"export_file"`
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
}

func Load() (*Config, error) {
	var f fileConfig
	if path := os.Getenv("EVENTDESK_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	c := &Config{
		DatabaseURL:      setting("EVENTDESK_DATABASE_URL", f.DatabaseURL, ""),
		Store:            strings.ToLower(setting("EVENTDESK_STORE", f.Store, StorePostgres)),
		GRPCAddr:         setting("EVENTDESK_GRPC_ADDR", f.GRPCAddr, ":9090"),
		HTTPAddr:         setting("EVENTDESK_HTTP_ADDR", f.HTTPAddr, ":8080"),
		AuthToken:        setting("EVENTDESK_AUTH_TOKEN", f.AuthToken, ""),
		NATSURL:          setting("EVENTDESK_NATS_URL", f.NATSURL, ""),
		NATSStream:       setting("EVENTDESK_NATS_STREAM", f.NATSStream, "EVENTDESK"),
		SubjectPrefix:    setting("EVENTDESK_NATS_SUBJECT_PREFIX", f.SubjectPrefix, "eventdesk"),
		ConsumerGroup:    setting("EVENTDESK_CONSUMER_GROUP", f.ConsumerGroup, "eventdesk-ingest"),
		ExportS3Bucket:   setting("EVENTDESK_EXPORT_S3_BUCKET", f.ExportS3Bucket, ""),
		ExportS3Endpoint: setting("EVENTDESK_EXPORT_S3_ENDPOINT", f.ExportS3Endpoint, ""),
		ExportS3Region:   setting("EVENTDESK_EXPORT_S3_REGION", f.ExportS3Region, "us-east-1"),
		ExportS3Key:      setting("EVENTDESK_EXPORT_S3_KEY", f.ExportS3Key, "eventdesk/events.jsonl"),
		ExportFile:       setting("EVENTDESK_EXPORT_FILE", f.ExportFile, ""),
		LogLevel:         setting("EVENTDESK_LOG_LEVEL", f.LogLevel, "info"),
		LogFormat:        strings.ToLower(setting("EVENTDESK_LOG_FORMAT", f.LogFormat, "text")),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("EVENTDESK_DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("EVENTDESK_STORE: unknown store %q", c.Store)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("EVENTDESK_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return nil, err
	}

	var err error
	if c.MaxDeliver, err = intSetting("EVENTDESK_MAX_DELIVER", f.MaxDeliver, "10"); err != nil {
		return nil, err
	}
	failures, err := intSetting("EVENTDESK_BREAKER_FAILURES", f.BreakerFailures, "5")
	if err != nil {
		return nil, err
	}
	if failures < 1 {
		return nil, fmt.Errorf("EVENTDESK_BREAKER_FAILURES: must be at least 1")
	}
	c.BreakerFailures = uint32(failures)

	for _, d := range []struct {
		key, file, fallback string
		dst                 *time.Duration
	}{
		{"EVENTDESK_STORE_TIMEOUT", f.StoreTimeout, "5s", &c.StoreTimeout},
		{"EVENTDESK_PUBLISH_TIMEOUT", f.PublishTimeout, "5s", &c.PublishTimeout},
		{"EVENTDESK_EXPORT_INTERVAL", f.ExportInterval, "0", &c.ExportInterval},
	} {
		v, err := time.ParseDuration(setting(d.key, d.file, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dst = v
	}

	return c, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("EVENTDESK_LOG_LEVEL: %w", err)
	}
	return l, nil
}

// setting returns the environment value for key, else the file value, else
// fallback.
func setting(key, fileValue, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func intSetting(key, fileValue, fallback string) (int, error) {
	v, err := strconv.Atoi(setting(key, fileValue, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
