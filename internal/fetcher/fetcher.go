package fetcher

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IshaanNene/MediaGoat/internal/observability"
	"github.com/IshaanNene/MediaGoat/internal/queue"
	"github.com/IshaanNene/MediaGoat/internal/types"
)

// MediaFetcher is a thin façade over the request queue: it normalizes URLs,
// queues the fetch, and classifies failures. Unrecoverable failures come back
// as a nil response so the caller can move on to the next URL.
type MediaFetcher struct {
	queue     *queue.Manager
	logger    *slog.Logger
	metrics   *observability.Metrics
	retryable map[int]struct{}
}

// NewMediaFetcher creates a media fetcher dispatching through q.
// metrics may be nil.
func NewMediaFetcher(q *queue.Manager, retryableStatusCodes []int, logger *slog.Logger, metrics *observability.Metrics) *MediaFetcher {
	if len(retryableStatusCodes) == 0 {
		retryableStatusCodes = queue.DefaultRetryableStatusCodes
	}
	retryable := make(map[int]struct{}, len(retryableStatusCodes))
	for _, code := range retryableStatusCodes {
		retryable[code] = struct{}{}
	}
	return &MediaFetcher{
		queue:     q,
		logger:    logger.With("component", "media_fetcher"),
		metrics:   metrics,
		retryable: retryable,
	}
}

// NormalizeURL converts a raw reference into the canonical fetch form:
// protocol-relative references get http (external CDNs redirect upward,
// never downward), and the result is encoded the way a browser address bar
// would. This exact string is the shared cache key.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "http://" + raw[len("//"):]
	}
	return encodeURI(raw)
}

// GetMedia fetches the asset behind a raw reference. It returns nil when the
// asset cannot be retrieved; the migration proceeds with other URLs.
func (f *MediaFetcher) GetMedia(ctx context.Context, rawURL string) *types.Response {
	normalized := NormalizeURL(rawURL)

	resp, err := f.queue.QueueRequest(ctx, normalized, types.RequestOptions{})
	if err != nil {
		statusCode := types.StatusCode(err)
		if _, retryable := f.retryable[statusCode]; retryable {
			f.logger.Warn("media fetch failed after retries",
				"url", normalized,
				"status", statusCode,
				"error", err,
			)
		} else {
			f.logger.Error("media fetch failed",
				"url", normalized,
				"status", statusCode,
				"error", err,
			)
		}
		return nil
	}

	if f.metrics != nil {
		f.metrics.BytesDownloaded.Add(resp.ContentLength)
	}
	return resp
}
