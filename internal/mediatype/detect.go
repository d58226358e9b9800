package mediatype

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/h2non/filetype"

	"github.com/IshaanNene/MediaGoat/internal/observability"
)

// mimeExtensions maps Content-Type values to extensions for responses whose
// bytes defeat magic-number sniffing (SVG and other text formats mostly).
var mimeExtensions = map[string]string{
	"image/jpeg":               "jpg",
	"image/jpg":                "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/avif":               "avif",
	"image/heic":               "heic",
	"image/heif":               "heif",
	"image/svg+xml":            "svg",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"video/mp4":                "mp4",
	"video/webm":               "webm",
	"video/ogg":                "ogv",
	"audio/mpeg":               "mp3",
	"audio/mp4":                "m4a",
	"audio/ogg":                "ogg",
	"audio/wav":                "wav",
	"audio/x-wav":              "wav",
	"application/pdf":          "pdf",
	"application/json":         "json",
	"text/csv":                 "csv",
	"text/plain":               "txt",
}

var extensionRun = regexp.MustCompile(`[a-zA-Z]+`)

// Detector infers a file extension for fetched bytes and normalizes formats
// the CMS cannot serve (HEIC becomes JPEG).
type Detector struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDetector creates a type detector. metrics may be nil.
func NewDetector(logger *slog.Logger, metrics *observability.Metrics) *Detector {
	return &Detector{
		logger:  logger.With("component", "type_detector"),
		metrics: metrics,
	}
}

// Detect returns the extension (without dot) for the fetched asset and the
// bytes to store, which differ from the input only when a transcode applied.
// Detection prefers magic bytes, then the Content-Type header, then the URL
// path.
func (d *Detector) Detect(rawURL string, body []byte, contentType string) (string, []byte) {
	ext := sniffExtension(body)
	if ext == "" {
		ext = extensionFromMIME(contentType)
	}
	if ext == "" {
		ext = extensionFromURL(rawURL)
	}

	if ext == "heic" || ext == "heif" {
		converted, err := transcodeToJPEG(body)
		if err != nil {
			// Best effort: keep the original bytes and extension.
			d.logger.Warn("heic transcode failed, keeping original",
				"url", rawURL,
				"error", err,
			)
			return ext, body
		}
		if d.metrics != nil {
			d.metrics.MediaTranscoded.Add(1)
		}
		d.logger.Debug("transcoded heic to jpeg", "url", rawURL, "size", len(converted))
		return "jpg", converted
	}

	return ext, body
}

// sniffExtension matches magic bytes; empty when unknown.
func sniffExtension(body []byte) string {
	kind, err := filetype.Match(body)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}

// extensionFromMIME consults the Content-Type header, ignoring parameters.
func extensionFromMIME(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mimeExtensions[mediaType]
}

// extensionFromURL parses the URL path and takes the first alphabetic run of
// the final extension segment, so "photo.jpg?width=600" and "photo.jpg4"
// both yield "jpg".
func extensionFromURL(rawURL string) string {
	pathname := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		pathname = u.Path
	}

	segment := pathname
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	i := strings.LastIndex(segment, ".")
	if i < 0 || i == len(segment)-1 {
		return ""
	}
	return extensionRun.FindString(segment[i+1:])
}
