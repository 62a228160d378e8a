// Package config loads and validates discovery service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Vetting   VettingConfig   `mapstructure:"vetting"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DiscoveryConfig governs per-run pipeline budgets and dedup behavior.
type DiscoveryConfig struct {
	MaxPagesPerRun     int `mapstructure:"max_pages_per_run"`
	MaxCitationsPerRun int `mapstructure:"max_citations_per_run"`
	MaxRedirects       int `mapstructure:"max_redirects"`
	SeenTTLDays        int `mapstructure:"seen_ttl_days"`
	EventBufferSize    int `mapstructure:"event_buffer_size"`
	RatePerSecond      int `mapstructure:"rate_per_second"`
	RateBurst          int `mapstructure:"rate_burst"`
}

// FetchConfig configures HTTP verification and content fetching.
type FetchConfig struct {
	VerifyTimeoutSeconds int    `mapstructure:"verify_timeout_seconds"`
	FetchTimeoutSeconds  int    `mapstructure:"fetch_timeout_seconds"`
	UserAgent            string `mapstructure:"user_agent"`
	MaxScanCandidates    int    `mapstructure:"max_scan_candidates"`
}

// VettingConfig tunes the content acceptance gates.
type VettingConfig struct {
	ScoreThreshold int `mapstructure:"score_threshold"`
	MinTextLength  int `mapstructure:"min_text_length"`
}

// OracleConfig points at the chat model used for planning and scoring.
type OracleConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	UserAgent     string `mapstructure:"user_agent"`
}

// StorageConfig sets paths and content types for audit blob persistence.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PubSubConfig holds metadata for saved-content notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISCOVERY")
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
	v.SetDefault("discovery.max_pages_per_run", 1)
	v.SetDefault("discovery.max_citations_per_run", 50)
	v.SetDefault("discovery.max_redirects", 5)
	v.SetDefault("discovery.seen_ttl_days", 30)
	v.SetDefault("discovery.event_buffer_size", 256)
	v.SetDefault("discovery.rate_per_second", 2)
	v.SetDefault("discovery.rate_burst", 2)
	v.SetDefault("fetch.verify_timeout_seconds", 10)
	v.SetDefault("fetch.fetch_timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "carrot-discovery-bot/0.1")
	v.SetDefault("fetch.max_scan_candidates", 200)
	v.SetDefault("vetting.score_threshold", 60)
	v.SetDefault("vetting.min_text_length", 500)
	v.SetDefault("oracle.model", "gpt-4o-mini")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("storage.prefix", "audits")
	v.SetDefault("storage.content_type", "text/plain; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Discovery.MaxPagesPerRun <= 0 {
		return fmt.Errorf("discovery.max_pages_per_run must be > 0")
	}
	if c.Discovery.MaxCitationsPerRun <= 0 {
		return fmt.Errorf("discovery.max_citations_per_run must be > 0")
	}
	if c.Discovery.RatePerSecond <= 0 {
		return fmt.Errorf("discovery.rate_per_second must be > 0")
	}
	if c.Fetch.VerifyTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.verify_timeout_seconds must be > 0")
	}
	if c.Fetch.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.fetch_timeout_seconds must be > 0")
	}
	if c.Vetting.ScoreThreshold < 0 || c.Vetting.ScoreThreshold > 100 {
		return fmt.Errorf("vetting.score_threshold must be in [0,100]")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	return nil
}

// VerifyTimeout returns the URL verification budget as a duration.
func (c Config) VerifyTimeout() time.Duration {
	return time.Duration(c.Fetch.VerifyTimeoutSeconds) * time.Second
}

// FetchTimeout returns the content fetch budget as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.FetchTimeoutSeconds) * time.Second
}

// SeenTTL returns the seen-URL expiry window as a duration.
func (c Config) SeenTTL() time.Duration {
	return time.Duration(c.Discovery.SeenTTLDays) * 24 * time.Hour
}
