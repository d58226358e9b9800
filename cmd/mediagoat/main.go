package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/MediaGoat/internal/cms"
	"github.com/IshaanNene/MediaGoat/internal/config"
	"github.com/IshaanNene/MediaGoat/internal/fetcher"
	"github.com/IshaanNene/MediaGoat/internal/inliner"
	"github.com/IshaanNene/MediaGoat/internal/jobs"
	"github.com/IshaanNene/MediaGoat/internal/mediatype"
	"github.com/IshaanNene/MediaGoat/internal/observability"
	"github.com/IshaanNene/MediaGoat/internal/queue"
	"github.com/IshaanNene/MediaGoat/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	domains     string
	contentRoot string
	mongoURI    string
	database    string
	maxRetries  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediagoat",
		Short: "MediaGoat — External Media Inliner for CMS content",
		Long: `MediaGoat migrates media assets referenced by external URLs in a CMS
database into locally managed storage.

Features:
  • Adaptive per-host rate-limited fetching with jittered retry
  • Scans post bodies (mobiledoc, lexical, html) and scalar image fields
  • Shared URL cache deduplicating fetches across the whole run
  • Magic-byte type detection with HEIC→JPEG transcoding
  • Collision-free slugged storage names
  • Prometheus metrics endpoint`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(inlineCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// inlineCmd creates the "inline" subcommand.
func inlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inline",
		Short: "Migrate externally hosted media into local storage",
		Long: "Scan CMS resources for references to the source domains, fetch each " +
			"asset, store it locally, and rewrite the references.",
		RunE: runInline,
	}

	cmd.Flags().StringVarP(&domains, "domains", "d", "", "comma-separated source domains (default: built-in legacy CDNs)")
	cmd.Flags().StringVarP(&contentRoot, "content-root", "o", "", "root directory for stored media")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "content database connection string")
	cmd.Flags().StringVar(&database, "database", "", "content database name")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "max retries per failed request (-1 = use config default)")

	return cmd
}

// runInline executes the inline command.
func runInline(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	domainList := cfg.Inliner.Domains
	logger.Info("starting media inliner",
		"domains", domainList,
		"content_root", cfg.Storage.ContentRoot,
		"database", cfg.CMS.Database,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	store, err := cms.NewMongoStore(ctx, cfg.CMS.MongoURI, cfg.CMS.Database, logger)
	if err != nil {
		return fmt.Errorf("connect content database: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	service := buildService(cfg, store.Models(), logger, metrics)

	runner := jobs.NewRunner(ctx, logger)
	start := time.Now()
	result := service.StartMediaInliner(runner, domainList)
	logger.Info("job accepted", "name", jobs.ExternalMediaInliner, "status", result.Status)

	runner.Wait()
	runner.Close()

	elapsed := time.Since(start)
	snap := metrics.Snapshot()

	logger.Info("media inlining complete",
		"elapsed", elapsed,
		"requests", snap["requests_total"],
		"inlined", snap["media_inlined"],
		"cache_hits", snap["cache_hits"],
		"skipped", snap["media_skipped"],
	)

	fmt.Printf("\n✅ Inlining complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Requests:   %v sent, %v failed, %v retried\n", snap["requests_total"], snap["requests_failed"], snap["requests_retried"])
	fmt.Printf("   Media:      %v inlined, %v cache hits, %v skipped\n", snap["media_inlined"], snap["cache_hits"], snap["media_skipped"])
	fmt.Printf("   Resources:  %v updated, %v failed\n", snap["resources_updated"], snap["resources_failed"])
	fmt.Printf("   Downloaded: %v bytes\n", snap["bytes_downloaded"])

	return nil
}

// buildService assembles the inlining pipeline from configuration.
func buildService(cfg *config.Config, models *cms.Models, logger *slog.Logger, metrics *observability.Metrics) *inliner.Service {
	executor := fetcher.NewHTTPExecutor(cfg, logger)

	manager := queue.NewManager(queue.Options{
		BaseWaitOnRetry:         cfg.Queue.BaseWaitOnRetry,
		DefaultRequestInterval:  cfg.Queue.DefaultRequestInterval,
		MaxConcurrentPerDomain:  cfg.Queue.MaxConcurrentPerDomain,
		MaxRequestInterval:      cfg.Queue.MaxRequestInterval,
		MinRequestInterval:      cfg.Queue.MinRequestInterval,
		MaxRetries:              cfg.Queue.MaxRetries,
		MinExpectedResponseTime: cfg.Queue.MinExpectedResponseTime,
		RetryableStatusCodes:    cfg.Queue.RetryableStatusCodes,
	}, executor, logger, metrics)

	mediaFetcher := fetcher.NewMediaFetcher(manager, cfg.Queue.RetryableStatusCodes, logger, metrics)
	detector := mediatype.NewDetector(logger, metrics)

	root := cfg.Storage.ContentRoot
	resolver := storage.NewResolver(cfg.Storage,
		storage.NewLocalAdapter("images", filepath.Join(root, "images"), "/content/images", logger),
		storage.NewLocalAdapter("media", filepath.Join(root, "media"), "/content/media", logger),
		storage.NewLocalAdapter("files", filepath.Join(root, "files"), "/content/files", logger),
		logger,
	)

	return inliner.NewService(manager, mediaFetcher, detector, resolver, models, logger, metrics)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MediaGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Queue:\n")
			fmt.Printf("  Max Concurrent/Domain: %d\n", cfg.Queue.MaxConcurrentPerDomain)
			fmt.Printf("  Default Interval:      %s\n", cfg.Queue.DefaultRequestInterval)
			fmt.Printf("  Interval Clamps:       [%s, %s]\n", cfg.Queue.MinRequestInterval, cfg.Queue.MaxRequestInterval)
			fmt.Printf("  Max Retries:           %d\n", cfg.Queue.MaxRetries)
			fmt.Printf("  Base Wait On Retry:    %s\n", cfg.Queue.BaseWaitOnRetry)
			fmt.Printf("  Retryable Statuses:    %v\n", cfg.Queue.RetryableStatusCodes)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  User Agent:        %s\n", cfg.Fetcher.UserAgent)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("\nInliner:\n")
			fmt.Printf("  Domains:           %v\n", cfg.Inliner.Domains)
			fmt.Printf("\nCMS:\n")
			fmt.Printf("  Database:          %s\n", cfg.CMS.Database)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Content Root:      %s\n", cfg.Storage.ContentRoot)
			fmt.Printf("  Image Extensions:  %d configured\n", len(cfg.Storage.ImageExtensions))
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
	return cmd
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if domains != "" {
		var list []string
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				list = append(list, d)
			}
		}
		cfg.Inliner.Domains = list
	}
	if contentRoot != "" {
		cfg.Storage.ContentRoot = contentRoot
	}
	if mongoURI != "" {
		cfg.CMS.MongoURI = mongoURI
	}
	if database != "" {
		cfg.CMS.Database = database
	}
	if maxRetries >= 0 {
		cfg.Queue.MaxRetries = maxRetries
	}
}
