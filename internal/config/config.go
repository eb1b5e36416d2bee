// Package config loads the service configuration from file and environment
// using Viper. Every key can be overridden with a LEADHARVEST_ prefixed
// environment variable, e.g. LEADHARVEST_SEARCH_API_KEY.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Output    OutputConfig    `mapstructure:"output"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig identifies the target site.
type SiteConfig struct {
	// BaseURL is the scheme and host harvested, without a trailing slash.
	BaseURL string `mapstructure:"base_url"`
	// PathFilters keeps only leaf references containing one of these
	// segments. Empty keeps everything.
	PathFilters []string `mapstructure:"path_filters"`
	// Marker, when set, rejects fetched pages that do not contain it.
	Marker string `mapstructure:"marker"`
}

// DiscoveryConfig controls sitemap discovery.
type DiscoveryConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	WindowDays   int      `mapstructure:"window_days"`
	IndexPaths   []string `mapstructure:"index_paths"`
	MaxDocuments int      `mapstructure:"max_documents"`
}

// SearchConfig controls the metered search harvest.
type SearchConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Queries       []string      `mapstructure:"queries"`
	PageCap       int           `mapstructure:"page_cap"`
	CreditCeiling int           `mapstructure:"credit_ceiling"`
	Delay         time.Duration `mapstructure:"delay"`
	SitePrefix    string        `mapstructure:"site_prefix"`
}

// FetchConfig controls the HTTP fetcher and its retry policy.
type FetchConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
	MirrorBase    string        `mapstructure:"mirror_base"`
	RetryBudget   int           `mapstructure:"retry_budget"`
	RateLimitWait time.Duration `mapstructure:"rate_limit_wait"`
}

// PoolConfig controls the fetch worker pool.
type PoolConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// OutputConfig selects lead sinks. A sink is active when its key is set.
type OutputConfig struct {
	CSVPath       string `mapstructure:"csv_path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
}

// ArchiveConfig selects where raw fetched bodies are kept.
type ArchiveConfig struct {
	// Kind is one of "none", "local", "gcs".
	Kind     string `mapstructure:"kind"`
	LocalDir string `mapstructure:"local_dir"`
	Bucket   string `mapstructure:"bucket"`
}

// PublishConfig controls the completion payload publisher.
type PublishConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LEADHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("leadharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/leadharvest/")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
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
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.window_days", 10)
	v.SetDefault("discovery.max_documents", 250)

	// Keys without a natural default still get one so environment-only
	// overrides survive Unmarshal.
	v.SetDefault("site.base_url", "")
	v.SetDefault("site.marker", "")

	v.SetDefault("search.enabled", false)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.site_prefix", "")
	v.SetDefault("search.page_cap", 5)
	v.SetDefault("search.credit_ceiling", 94)
	v.SetDefault("search.delay", "2s")

	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.timeout", "25s")
	v.SetDefault("fetch.max_body_bytes", 8*1024*1024)
	v.SetDefault("fetch.mirror_base", "https://r.jina.ai")
	v.SetDefault("fetch.retry_budget", 3)
	v.SetDefault("fetch.rate_limit_wait", "30s")

	v.SetDefault("pool.concurrency", 25)

	v.SetDefault("output.csv_path", "leads.csv")
	v.SetDefault("output.sqlite_path", "")
	v.SetDefault("output.postgres_dsn", "")
	v.SetDefault("output.postgres_table", "leads")

	v.SetDefault("archive.kind", "none")
	v.SetDefault("archive.local_dir", "")
	v.SetDefault("archive.bucket", "")

	v.SetDefault("publish.project_id", "")
	v.SetDefault("publish.topic", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("logging.development", false)
}

// Validate checks cross-field invariants.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if !c.Discovery.Enabled && !c.Search.Enabled {
		return fmt.Errorf("at least one reference source must be enabled")
	}
	if c.Pool.Concurrency <= 0 {
		return fmt.Errorf("pool.concurrency must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Output.CSVPath == "" && c.Output.SQLitePath == "" && c.Output.PostgresDSN == "" {
		return fmt.Errorf("at least one output sink must be configured")
	}
	switch c.Archive.Kind {
	case "", "none", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive.kind %q", c.Archive.Kind)
	}
	if c.Archive.Kind == "local" && c.Archive.LocalDir == "" {
		return fmt.Errorf("archive.local_dir is required for local archive")
	}
	if c.Archive.Kind == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required for gcs archive")
	}
	if (c.Publish.ProjectID == "") != (c.Publish.Topic == "") {
		return fmt.Errorf("publish.project_id and publish.topic must be set together")
	}
	return nil
}
