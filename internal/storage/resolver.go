package storage

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/MediaGoat/internal/config"
	"github.com/IshaanNene/MediaGoat/internal/types"
)

// Resolver selects a storage adapter by extension class and binds fetched
// media to a stored path: target directory, unique name, raw write.
type Resolver struct {
	logger *slog.Logger

	images Adapter
	media  Adapter
	files  Adapter

	imageExts map[string]struct{}
	mediaExts map[string]struct{}
	fileExts  map[string]struct{}
}

// NewResolver creates a resolver from the extension classification in cfg.
// Any adapter may be nil; extensions mapping to a nil adapter are treated as
// unsupported.
func NewResolver(cfg config.StorageConfig, images, media, files Adapter, logger *slog.Logger) *Resolver {
	return &Resolver{
		logger:    logger.With("component", "storage_resolver"),
		images:    images,
		media:     media,
		files:     files,
		imageExts: extensionSet(cfg.ImageExtensions),
		mediaExts: extensionSet(cfg.MediaExtensions),
		fileExts:  extensionSet(cfg.FileExtensions),
	}
}

// ForExtension returns the adapter serving a dot-prefixed extension, or nil
// when the extension belongs to no configured class.
func (r *Resolver) ForExtension(ext string) Adapter {
	key := strings.ToLower(ext)
	if _, ok := r.imageExts[key]; ok {
		return r.images
	}
	if _, ok := r.mediaExts[key]; ok {
		return r.media
	}
	if _, ok := r.fileExts[key]; ok {
		return r.files
	}
	return nil
}

// Save binds fetched media to storage and returns the stored serving path.
// A missing adapter yields ErrNoStorageAdapter; the caller leaves the
// reference unrewritten.
func (r *Resolver) Save(media *types.FetchedMedia) (string, error) {
	adapter := r.ForExtension(media.Extension)
	if adapter == nil {
		r.logger.Warn("no storage adapter for extension",
			"extension", media.Extension,
			"filename", media.Filename,
		)
		return "", types.ErrNoStorageAdapter
	}

	targetDir := adapter.TargetDir()
	unique, err := adapter.UniqueFileName(media.Filename, targetDir)
	if err != nil {
		return "", err
	}

	relPath, err := filepath.Rel(adapter.StoragePath(), unique)
	if err != nil {
		return "", &types.StorageError{Adapter: adapter.Name(), Path: unique, Err: err}
	}

	return adapter.SaveRaw(media.FileBuffer, relPath)
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}
