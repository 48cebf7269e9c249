package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the broker listens on.
	DefaultAddr = ":43127"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 15 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients bounds concurrent WebSocket connections. Zero disables the limit.
	DefaultMaxClients = 1024

	// DefaultSinkWriteDeadline bounds how long a sink write may block before
	// the sink is closed (spec.md §5: "sink writes have a configurable
	// deadline (default 10s)").
	DefaultSinkWriteDeadline = 10 * time.Second
	// DefaultHeartbeatDeadline bounds how long a sink may go without a pong
	// before it is considered dead (spec.md §4.6, default 45s).
	DefaultHeartbeatDeadline = 45 * time.Second

	// DefaultReplayDumpWindow bounds how frequently a persisted-log dump may be requested.
	DefaultReplayDumpWindow = time.Minute
	// DefaultReplayDumpBurst sets how many dump requests may be made per window.
	DefaultReplayDumpBurst = 1

	// DefaultLogLevel controls verbosity for broker logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "canvas-broker.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultSnapshotEveryEntries is the default for SnapshotEveryEntries.
	// The setting is loaded and validated, but the canvas log does not read
	// it: the log is compacted each time a snapshot is taken.
	DefaultSnapshotEveryEntries = 1000
	// DefaultSnapshotFlushInterval is the default for SnapshotFlushInterval.
	// The setting is loaded and validated; nothing in the broker flushes on
	// this interval.
	DefaultSnapshotFlushInterval = 5 * time.Second
)

// Config captures all runtime tunables for the canvas broker service.
type Config struct {
	Address              string
	AllowedOrigins       []string
	MaxPayloadBytes      int64
	PingInterval         time.Duration
	MaxClients           int
	SinkWriteDeadline    time.Duration
	HeartbeatDeadline    time.Duration
	TLSCertPath          string
	TLSKeyPath           string
	AdminToken           string
	ReplayDumpWindow     time.Duration
	ReplayDumpBurst      int
	Logging              LoggingConfig
	StatePath            string
	SnapshotEveryEntries int
	SnapshotFlushInterval time.Duration
	MetadataBaseURL      string
	AuthSecret           string
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the broker configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:           getString("CANVAS_ADDR", DefaultAddr),
		AllowedOrigins:    parseList(os.Getenv("CANVAS_ALLOWED_ORIGINS")),
		MaxPayloadBytes:   DefaultMaxPayloadBytes,
		PingInterval:      DefaultPingInterval,
		MaxClients:        DefaultMaxClients,
		SinkWriteDeadline: DefaultSinkWriteDeadline,
		HeartbeatDeadline: DefaultHeartbeatDeadline,
		TLSCertPath:       strings.TrimSpace(os.Getenv("CANVAS_TLS_CERT")),
		TLSKeyPath:        strings.TrimSpace(os.Getenv("CANVAS_TLS_KEY")),
		AdminToken:        strings.TrimSpace(os.Getenv("CANVAS_ADMIN_TOKEN")),
		ReplayDumpWindow:  DefaultReplayDumpWindow,
		ReplayDumpBurst:   DefaultReplayDumpBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("CANVAS_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("CANVAS_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		StatePath:             strings.TrimSpace(os.Getenv("CANVAS_STATE_PATH")),
		SnapshotEveryEntries:  DefaultSnapshotEveryEntries,
		SnapshotFlushInterval: DefaultSnapshotFlushInterval,
		MetadataBaseURL:       strings.TrimSpace(os.Getenv("CANVAS_METADATA_BASE_URL")),
		AuthSecret:            strings.TrimSpace(os.Getenv("CANVAS_AUTH_SECRET")),
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("CANVAS_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_SINK_WRITE_DEADLINE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_SINK_WRITE_DEADLINE must be a positive duration, got %q", raw))
		} else {
			cfg.SinkWriteDeadline = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_HEARTBEAT_DEADLINE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_HEARTBEAT_DEADLINE must be a positive duration, got %q", raw))
		} else {
			cfg.HeartbeatDeadline = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("CANVAS_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_REPLAY_DUMP_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_REPLAY_DUMP_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.ReplayDumpWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_REPLAY_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_REPLAY_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.ReplayDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_SNAPSHOT_EVERY_ENTRIES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_SNAPSHOT_EVERY_ENTRIES must be a positive integer, got %q", raw))
		} else {
			cfg.SnapshotEveryEntries = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CANVAS_SNAPSHOT_FLUSH_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CANVAS_SNAPSHOT_FLUSH_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.SnapshotFlushInterval = duration
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "CANVAS_TLS_CERT and CANVAS_TLS_KEY must be provided together")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
