package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Queue.MaxConcurrentPerDomain < 1 {
		return fmt.Errorf("queue.max_concurrent_per_domain must be >= 1, got %d", cfg.Queue.MaxConcurrentPerDomain)
	}
	if cfg.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be >= 0, got %d", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.BaseWaitOnRetry < 0 {
		return fmt.Errorf("queue.base_wait_on_retry must be >= 0")
	}
	if cfg.Queue.MinRequestInterval < 0 {
		return fmt.Errorf("queue.min_request_interval must be >= 0")
	}
	if cfg.Queue.MaxRequestInterval < cfg.Queue.MinRequestInterval {
		return fmt.Errorf("queue.max_request_interval must be >= queue.min_request_interval")
	}
	if cfg.Queue.DefaultRequestInterval < cfg.Queue.MinRequestInterval ||
		cfg.Queue.DefaultRequestInterval > cfg.Queue.MaxRequestInterval {
		return fmt.Errorf("queue.default_request_interval must be within [min, max] request interval")
	}
	for _, code := range cfg.Queue.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("queue.retryable_status_codes contains invalid status %d", code)
		}
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}

	for _, domain := range cfg.Inliner.Domains {
		if err := ValidateDomain(domain); err != nil {
			return fmt.Errorf("inliner.domains: %w", err)
		}
	}

	if cfg.CMS.MongoURI == "" {
		return fmt.Errorf("cms.mongo_uri must be set")
	}
	if cfg.CMS.Database == "" {
		return fmt.Errorf("cms.database must be set")
	}

	if cfg.Storage.ContentRoot == "" {
		return fmt.Errorf("storage.content_root must be set")
	}
	for _, exts := range [][]string{cfg.Storage.ImageExtensions, cfg.Storage.MediaExtensions, cfg.Storage.FileExtensions} {
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("storage extension %q must be dot-prefixed", ext)
			}
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateDomain checks that a source domain is a usable URL prefix. Domains
// may carry a path (bucket-style CDNs like s3.amazonaws.com/revue do).
func ValidateDomain(domain string) error {
	u, err := url.Parse(domain)
	if err != nil {
		return fmt.Errorf("invalid domain %q: %w", domain, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("domain %q scheme must be http or https", domain)
	}
	if u.Host == "" {
		return fmt.Errorf("domain %q must have a host", domain)
	}
	return nil
}
