package inliner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/MediaGoat/internal/cms"
	"github.com/IshaanNene/MediaGoat/internal/fetcher"
	"github.com/IshaanNene/MediaGoat/internal/mediatype"
	"github.com/IshaanNene/MediaGoat/internal/observability"
	"github.com/IshaanNene/MediaGoat/internal/queue"
	"github.com/IshaanNene/MediaGoat/internal/storage"
	"github.com/IshaanNene/MediaGoat/internal/types"
)

// DefaultDomains are the legacy newsletter CDNs migrated when the caller
// supplies no domains.
var DefaultDomains = []string{
	"https://s3.amazonaws.com/revue",
	"https://substackcdn.com",
}

// Field sets walked per resource kind.
var (
	postImageFields     = []string{"feature_image"}
	postContentFields   = []string{"mobiledoc", "lexical"}
	postMetaImageFields = []string{"og_image", "twitter_image"}
	tagImageFields      = []string{"feature_image", "og_image", "twitter_image"}
	userImageFields     = []string{"profile_image", "cover_image"}
)

// Service drives the scan → fetch → store → rewrite pipeline across content
// bodies and scalar fields, owning the shared URL cache for the whole run.
type Service struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	queue    *queue.Manager
	fetcher  *fetcher.MediaFetcher
	detector *mediatype.Detector
	store    *storage.Resolver
	models   *cms.Models
	cache    *URLCache
}

// NewService wires the inliner. metrics may be nil.
func NewService(
	q *queue.Manager,
	f *fetcher.MediaFetcher,
	d *mediatype.Detector,
	store *storage.Resolver,
	models *cms.Models,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		logger:   logger.With("component", "media_inliner"),
		metrics:  metrics,
		queue:    q,
		fetcher:  f,
		detector: d,
		store:    store,
		models:   models,
		cache:    NewURLCache(),
	}
}

// Inline migrates every reference to the given domains across posts, post
// metadata, tags, and users. No individual failure aborts the run; the batch
// always walks its full resource list, then drains the request queue and
// clears the cache.
func (s *Service) Inline(ctx context.Context, domains []string) error {
	if len(domains) == 0 {
		domains = DefaultDomains
		s.logger.Info("no domains supplied, using defaults", "domains", domains)
	}

	s.logger.Info("media inlining started", "domains", domains)

	s.inlinePosts(ctx, domains)
	s.inlinePaged(ctx, s.models.PostsMeta, "post_meta", postMetaImageFields, domains)
	s.inlinePaged(ctx, s.models.Tags, "tag", tagImageFields, domains)
	s.inlinePaged(ctx, s.models.Users, "user", userImageFields, domains)

	if err := s.queue.WaitForAllQueues(ctx); err != nil {
		return fmt.Errorf("waiting for request queues: %w", err)
	}
	s.cache.Clear()

	s.logger.Info("media inlining finished")
	return nil
}

// inlinePosts walks every post: scalar image fields, structured bodies, and
// the rendered HTML copy.
func (s *Service) inlinePosts(ctx context.Context, domains []string) {
	posts, err := s.models.Posts.FindAll(ctx, cms.Internal())
	if err != nil {
		s.logger.Error("loading posts failed", "error", err)
		return
	}
	s.logger.Info("inlining posts", "count", len(posts))

	for _, post := range posts {
		if err := s.inlinePost(ctx, post, domains); err != nil {
			s.resourceFailed("post", post.ID(), err)
		}
	}
}

func (s *Service) inlinePost(ctx context.Context, post cms.Resource, domains []string) error {
	updates := s.InlineFields(ctx, post, postImageFields, domains)

	for _, field := range postContentFields {
		content := post.Get(field)
		if content == "" {
			continue
		}
		if rewritten := s.InlineContent(ctx, content, domains); rewritten != content {
			updates[field] = rewritten
		}
	}

	// The rendered copy references the same assets through DOM attributes.
	if html := post.Get("html"); html != "" {
		if rewritten := s.inlineHTML(ctx, html, domains); rewritten != html {
			updates["html"] = rewritten
		}
	}

	return s.persist(ctx, s.models.Posts, "post", post.ID(), updates)
}

// inlinePaged walks a paged resource list (post metadata, tags, users),
// inlining scalar image fields only.
func (s *Service) inlinePaged(ctx context.Context, model cms.Model, kind string, fields, domains []string) {
	opts := cms.Internal()
	opts.Limit = "all"
	page, err := model.FindPage(ctx, opts)
	if err != nil {
		s.logger.Error("loading resources failed", "resource", kind, "error", err)
		return
	}
	s.logger.Info("inlining resources", "resource", kind, "count", len(page.Data))

	for _, res := range page.Data {
		updates := s.InlineFields(ctx, res, fields, domains)
		if err := s.persist(ctx, model, kind, res.ID(), updates); err != nil {
			s.resourceFailed(kind, res.ID(), err)
		}
	}
}

// InlineFields reads each scalar field and, when its value begins with one
// of the domains, swaps it for the stored reference token. The returned map
// holds only changed fields.
func (s *Service) InlineFields(ctx context.Context, res cms.Resource, fields, domains []string) map[string]string {
	updates := make(map[string]string)
	for _, field := range fields {
		src := res.Get(field)
		if src == "" {
			continue
		}
		for _, domain := range domains {
			if !strings.HasPrefix(src, domain) {
				continue
			}
			if path, ok := s.resolveURL(ctx, src); ok {
				updates[field] = Token + path
			}
			break
		}
	}
	return updates
}

// InlineContent scans a document body for domain-rooted references and
// rewrites each resolvable one. The input comes back unchanged when nothing
// matched or nothing could be stored.
func (s *Service) InlineContent(ctx context.Context, content string, domains []string) string {
	for _, domain := range domains {
		for _, src := range Dedupe(FindMatches(content, domain)) {
			if path, ok := s.resolveURL(ctx, src); ok {
				content = Rewrite(content, src, path)
			}
		}
	}
	return content
}

// inlineHTML is InlineContent for the rendered HTML copy, collecting
// references from DOM attributes instead of raw text.
func (s *Service) inlineHTML(ctx context.Context, content string, domains []string) string {
	for _, domain := range domains {
		for _, src := range Dedupe(FindHTMLMatches(content, domain)) {
			if path, ok := s.resolveURL(ctx, src); ok {
				content = Rewrite(content, src, path)
			}
		}
	}
	return content
}

// resolveURL turns a raw reference into a stored serving path, deduplicating
// across the whole run through the shared cache. The original reference is
// kept when the asset cannot be fetched or stored.
func (s *Service) resolveURL(ctx context.Context, src string) (string, bool) {
	key := fetcher.NormalizeURL(src)

	path, hit, err := s.cache.Resolve(key, func() (string, error) {
		return s.fetchAndStore(ctx, src)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.MediaSkipped.Add(1)
		}
		s.logger.Debug("reference left unrewritten", "url", src, "reason", err)
		return "", false
	}

	if s.metrics != nil {
		if hit {
			s.metrics.CacheHits.Add(1)
		} else {
			s.metrics.MediaInlined.Add(1)
		}
	}
	return path, true
}

// fetchAndStore is the cache-miss path: fetch through the queue, detect and
// normalize the type, derive the storage name, and bind to storage.
func (s *Service) fetchAndStore(ctx context.Context, src string) (string, error) {
	resp := s.fetcher.GetMedia(ctx, src)
	if resp == nil {
		return "", types.ErrMediaUnavailable
	}

	ext, body := s.detector.Detect(src, resp.Body, resp.ContentType)
	if ext == "" {
		s.logger.Warn("undetectable media type", "url", src)
		return "", fmt.Errorf("undetectable media type for %s", src)
	}

	media := &types.FetchedMedia{
		FileBuffer: body,
		Filename:   MediaFilename(src, ext),
		Extension:  "." + ext,
	}
	return s.store.Save(media)
}

// persist writes accumulated field updates, if any.
func (s *Service) persist(ctx context.Context, model cms.Model, kind, id string, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}

	opts := cms.Internal()
	opts.ID = id
	if err := model.Edit(ctx, updates, opts); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ResourcesUpdated.Add(1)
	}
	s.logger.Debug("resource updated", "resource", kind, "id", id, "fields", len(updates))
	return nil
}

func (s *Service) resourceFailed(kind, id string, err error) {
	if s.metrics != nil {
		s.metrics.ResourcesFailed.Add(1)
	}
	s.logger.Error("resource inlining failed",
		"error", &types.DataImportError{Resource: kind, ID: id, Err: err},
	)
}
