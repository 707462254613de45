// Package config loads and validates auditor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Crawl       CrawlConfig       `mapstructure:"crawl"`
	Progress    ProgressConfig    `mapstructure:"progress"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	DB          DBConfig          `mapstructure:"db"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Events      EventsConfig      `mapstructure:"events"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ProviderConfig selects and configures the crawl provider.
type ProviderConfig struct {
	// Kind selects the implementation: "firecrawl", "local" or "mock".
	Kind           string `mapstructure:"kind"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CrawlConfig governs crawl request defaults and page processing.
type CrawlConfig struct {
	MaxPagesDefault     int    `mapstructure:"max_pages_default"`
	DepthDefault        int    `mapstructure:"depth_default"`
	FollowInternalLinks bool   `mapstructure:"follow_internal_links"`
	PageConcurrency     int    `mapstructure:"page_concurrency"`
	UserAgent           string `mapstructure:"user_agent"`
}

// ProgressConfig names the time-based progress heuristic thresholds.
// These stand in for real provider telemetry; when a provider exposes a
// trustworthy percent the floor acts as a lower bound only.
type ProgressConfig struct {
	RampSeconds       int `mapstructure:"ramp_seconds"`
	RampCeiling       int `mapstructure:"ramp_ceiling"`
	MidpointSeconds   int `mapstructure:"midpoint_seconds"`
	MidpointFloor     int `mapstructure:"midpoint_floor"`
	ForceFlushSeconds int `mapstructure:"force_flush_seconds"`
}

// DiagnosticsConfig configures the best-effort issue annotator. An empty
// APIKey is a valid runtime configuration that disables the feature.
type DiagnosticsConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxWords       int     `mapstructure:"max_words"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
	Burst          int     `mapstructure:"burst"`
	MaxConcurrent  int     `mapstructure:"max_concurrent"`
}

// DBConfig controls access to the relational result store.
type DBConfig struct {
	// Provider is "postgres" or "memory".
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig sets paths and content types for snapshot persistence.
type StorageConfig struct {
	// Provider is "gcs", "local" or "memory".
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	BaseDir     string `mapstructure:"base_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// EventsConfig holds metadata for publish-subscribe notifications.
type EventsConfig struct {
	// Provider is "pubsub" or "memory".
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("provider.kind", "local")
	v.SetDefault("provider.base_url", "https://api.firecrawl.dev")
	v.SetDefault("provider.timeout_seconds", 30)
	v.SetDefault("crawl.max_pages_default", 25)
	v.SetDefault("crawl.depth_default", 2)
	v.SetDefault("crawl.follow_internal_links", true)
	v.SetDefault("crawl.page_concurrency", 4)
	v.SetDefault("crawl.user_agent", "aeo-audit-bot/0.1")
	v.SetDefault("progress.ramp_seconds", 30)
	v.SetDefault("progress.ramp_ceiling", 30)
	v.SetDefault("progress.midpoint_seconds", 120)
	v.SetDefault("progress.midpoint_floor", 50)
	v.SetDefault("progress.force_flush_seconds", 300)
	v.SetDefault("diagnostics.model", "claude-3-5-haiku-latest")
	v.SetDefault("diagnostics.timeout_seconds", 10)
	v.SetDefault("diagnostics.max_words", 60)
	v.SetDefault("diagnostics.requests_per_sec", 2)
	v.SetDefault("diagnostics.burst", 2)
	v.SetDefault("diagnostics.max_concurrent", 4)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("events.provider", "memory")
	v.SetDefault("events.topic", "audit-completed")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Missing
// credentials for a selected backend fail here, at construction, not at
// first use.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Provider.Kind {
	case "firecrawl":
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key must be set when provider.kind is firecrawl")
		}
	case "local", "mock":
	default:
		return fmt.Errorf("unknown provider.kind %q", c.Provider.Kind)
	}
	if c.Crawl.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawl.max_pages_default must be > 0")
	}
	if c.Crawl.PageConcurrency <= 0 {
		return fmt.Errorf("crawl.page_concurrency must be > 0")
	}
	if c.Progress.RampSeconds <= 0 || c.Progress.MidpointSeconds <= c.Progress.RampSeconds ||
		c.Progress.ForceFlushSeconds <= c.Progress.MidpointSeconds {
		return fmt.Errorf("progress thresholds must be increasing and positive")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	if c.Storage.Provider == "local" && c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir must be set when storage.provider is local")
	}
	if c.Events.Provider == "pubsub" && (c.Events.ProjectID == "" || c.Events.Topic == "") {
		return fmt.Errorf("events.project_id and events.topic must be set when events.provider is pubsub")
	}
	return nil
}

// ProviderTimeout converts the provider timeout config into a duration.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// DiagnosticTimeout converts the diagnostics timeout config into a duration.
func (c Config) DiagnosticTimeout() time.Duration {
	return time.Duration(c.Diagnostics.TimeoutSeconds) * time.Second
}
