package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for MediaGoat.
type Config struct {
	Queue   QueueConfig   `mapstructure:"queue"   yaml:"queue"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Inliner InlinerConfig `mapstructure:"inliner" yaml:"inliner"`
	CMS     CMSConfig     `mapstructure:"cms"     yaml:"cms"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// QueueConfig controls the per-host request queue.
type QueueConfig struct {
	BaseWaitOnRetry         time.Duration `mapstructure:"base_wait_on_retry"         yaml:"base_wait_on_retry"`
	DefaultRequestInterval  time.Duration `mapstructure:"default_request_interval"   yaml:"default_request_interval"`
	MaxConcurrentPerDomain  int           `mapstructure:"max_concurrent_per_domain"  yaml:"max_concurrent_per_domain"`
	MaxRequestInterval      time.Duration `mapstructure:"max_request_interval"       yaml:"max_request_interval"`
	MinRequestInterval      time.Duration `mapstructure:"min_request_interval"       yaml:"min_request_interval"`
	MaxRetries              int           `mapstructure:"max_retries"                yaml:"max_retries"`
	MinExpectedResponseTime time.Duration `mapstructure:"min_expected_response_time" yaml:"min_expected_response_time"`
	RetryableStatusCodes    []int         `mapstructure:"retryable_status_codes"     yaml:"retryable_status_codes"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// InlinerConfig controls the media inlining run.
type InlinerConfig struct {
	// Domains are the source domains to migrate. Empty means the built-in
	// defaults (legacy newsletter CDNs).
	Domains []string `mapstructure:"domains" yaml:"domains"`
}

// CMSConfig points at the content database.
type CMSConfig struct {
	MongoURI string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	Database string `mapstructure:"database"  yaml:"database"`
}

// StorageConfig controls local media storage and the extension
// classification used to pick an adapter.
type StorageConfig struct {
	ContentRoot     string   `mapstructure:"content_root"     yaml:"content_root"`
	ImageExtensions []string `mapstructure:"image_extensions" yaml:"image_extensions"`
	MediaExtensions []string `mapstructure:"media_extensions" yaml:"media_extensions"`
	FileExtensions  []string `mapstructure:"file_extensions"  yaml:"file_extensions"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			BaseWaitOnRetry:         1 * time.Second,
			DefaultRequestInterval:  500 * time.Millisecond,
			MaxConcurrentPerDomain:  2,
			MaxRequestInterval:      15 * time.Second,
			MinRequestInterval:      200 * time.Millisecond,
			MaxRetries:              3,
			MinExpectedResponseTime: 500 * time.Millisecond,
			RetryableStatusCodes:    []int{429, 408, 502, 503, 504},
		},
		Fetcher: FetcherConfig{
			UserAgent:       "MediaGoat/" + Version,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     100 * 1024 * 1024, // 100MB
			RequestTimeout:  60 * time.Second,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Inliner: InlinerConfig{},
		CMS: CMSConfig{
			MongoURI: "mongodb://localhost:27017",
			Database: "cms",
		},
		Storage: StorageConfig{
			ContentRoot: "./content",
			ImageExtensions: []string{
				".jpg", ".jpeg", ".gif", ".png", ".svg", ".svgz", ".ico", ".webp", ".avif",
			},
			MediaExtensions: []string{
				".mp4", ".webm", ".ogv", ".mp3", ".wav", ".ogg", ".m4a",
			},
			FileExtensions: []string{
				".pdf", ".json", ".jsonld", ".odp", ".ods", ".odt", ".ppt", ".pptx",
				".csv", ".txt", ".rtf", ".doc", ".docx", ".xls", ".xlsx", ".xml", ".md",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
