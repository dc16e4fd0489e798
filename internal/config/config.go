// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Browser BrowserConfig `mapstructure:"browser"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Favicon FaviconConfig `mapstructure:"favicon"`
	Links   LinksConfig   `mapstructure:"links"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	DB      DBConfig      `mapstructure:"db"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig maps API keys to opaque owner keys.
type AuthConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Keys    map[string]string `mapstructure:"keys"`
}

// BrowserConfig sizes the headless page pool.
type BrowserConfig struct {
	MaxPages           int    `mapstructure:"max_pages"`
	AcquireTimeoutSecs int    `mapstructure:"acquire_timeout_seconds"`
	IdleTimeoutSecs    int    `mapstructure:"idle_timeout_seconds"`
	UserAgent          string `mapstructure:"user_agent"`
}

// FetchConfig bounds a single page fetch.
type FetchConfig struct {
	TimeoutSecs   int `mapstructure:"timeout_seconds"`
	SettleDelayMs int `mapstructure:"settle_delay_ms"`
}

// FaviconConfig bounds favicon fetching.
type FaviconConfig struct {
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
	MaxBytes    int64  `mapstructure:"max_bytes"`
	CachePrefix string `mapstructure:"cache_prefix"`
}

// LinksConfig governs list rendering and the recycle bin.
type LinksConfig struct {
	MinGroupSize   int `mapstructure:"min_group_size"`
	RecycleBinKeep int `mapstructure:"recycle_bin_keep"`
}

// IngestConfig sizes the fire-and-forget add pipeline.
type IngestConfig struct {
	Workers         int `mapstructure:"workers"`
	QueueDepth      int `mapstructure:"queue_depth"`
	TaskTimeoutSecs int `mapstructure:"task_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                 string `mapstructure:"dsn"`
	Table               string `mapstructure:"table"`
	MaxConns            int32  `mapstructure:"max_conns"`
	MinConns            int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSecs int    `mapstructure:"max_conn_lifetime_seconds"`
}

// CacheConfig selects the favicon blob cache backend.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// EventsConfig selects the link-event publisher backend.
type EventsConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Cache/event backend names accepted in config.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendPubSub = "pubsub"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKSTASH")
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
	v.SetDefault("browser.max_pages", 5)
	v.SetDefault("browser.acquire_timeout_seconds", 30)
	v.SetDefault("browser.idle_timeout_seconds", 10)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.settle_delay_ms", 500)
	v.SetDefault("favicon.timeout_seconds", 10)
	v.SetDefault("favicon.max_bytes", 1<<20)
	v.SetDefault("favicon.cache_prefix", "favicons")
	v.SetDefault("links.min_group_size", 2)
	v.SetDefault("links.recycle_bin_keep", 1)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.queue_depth", 64)
	v.SetDefault("ingest.task_timeout_seconds", 120)
	v.SetDefault("db.table", "links")
	v.SetDefault("cache.backend", BackendNone)
	v.SetDefault("events.backend", BackendNone)
	v.SetDefault("events.topic", "link-events")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxPages <= 0 {
		return fmt.Errorf("browser.max_pages must be > 0")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Links.RecycleBinKeep < 1 {
		return fmt.Errorf("links.recycle_bin_keep must be >= 1")
	}
	if c.Links.MinGroupSize < 1 {
		return fmt.Errorf("links.min_group_size must be >= 1")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("auth.keys must be set when auth is enabled")
	}
	switch c.Cache.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Cache.LocalDir == "" {
			return fmt.Errorf("cache.local_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Cache.GCSBucket == "" {
			return fmt.Errorf("cache.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	switch c.Events.Backend {
	case BackendNone, BackendMemory:
	case BackendPubSub:
		if c.Events.ProjectID == "" {
			return fmt.Errorf("events.project_id is required for the pubsub backend")
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}
	return nil
}

// FetchTimeout returns the page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSecs) * time.Second
}

// SettleDelay returns the post-load settle wait.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Fetch.SettleDelayMs) * time.Millisecond
}

// AcquireTimeout returns the pool wait budget.
func (c Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Browser.AcquireTimeoutSecs) * time.Second
}

// IdleTimeout returns the browser idle teardown delay.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.Browser.IdleTimeoutSecs) * time.Second
}

// FaviconTimeout returns the per-candidate favicon fetch budget.
func (c Config) FaviconTimeout() time.Duration {
	return time.Duration(c.Favicon.TimeoutSecs) * time.Second
}

// TaskTimeout returns the budget for one queued add.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.Ingest.TaskTimeoutSecs) * time.Second
}

// MaxConnLifetime returns the Postgres connection lifetime cap.
func (c Config) MaxConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSecs) * time.Second
}
