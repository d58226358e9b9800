package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment over the defaults.
// Priority (highest to lowest): env vars > config file > defaults. CLI flag
// overrides are not read here; the caller applies them to the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("MEDIAGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("mediagoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".mediagoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("queue.base_wait_on_retry", cfg.Queue.BaseWaitOnRetry)
	v.SetDefault("queue.default_request_interval", cfg.Queue.DefaultRequestInterval)
	v.SetDefault("queue.max_concurrent_per_domain", cfg.Queue.MaxConcurrentPerDomain)
	v.SetDefault("queue.max_request_interval", cfg.Queue.MaxRequestInterval)
	v.SetDefault("queue.min_request_interval", cfg.Queue.MinRequestInterval)
	v.SetDefault("queue.max_retries", cfg.Queue.MaxRetries)
	v.SetDefault("queue.min_expected_response_time", cfg.Queue.MinExpectedResponseTime)
	v.SetDefault("queue.retryable_status_codes", cfg.Queue.RetryableStatusCodes)

	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("inliner.domains", cfg.Inliner.Domains)

	v.SetDefault("cms.mongo_uri", cfg.CMS.MongoURI)
	v.SetDefault("cms.database", cfg.CMS.Database)

	v.SetDefault("storage.content_root", cfg.Storage.ContentRoot)
	v.SetDefault("storage.image_extensions", cfg.Storage.ImageExtensions)
	v.SetDefault("storage.media_extensions", cfg.Storage.MediaExtensions)
	v.SetDefault("storage.file_extensions", cfg.Storage.FileExtensions)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
