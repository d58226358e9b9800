package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/IshaanNene/MediaGoat/internal/types"
)

// LocalAdapter stores assets on the local filesystem under dated
// directories, the way the CMS's own upload path does.
type LocalAdapter struct {
	name      string
	root      string
	urlPrefix string
	logger    *slog.Logger
}

// NewLocalAdapter creates a local adapter rooted at root. urlPrefix is the
// serving prefix returned for stored assets (e.g. "/content/images").
func NewLocalAdapter(name, root, urlPrefix string, logger *slog.Logger) *LocalAdapter {
	return &LocalAdapter{
		name:      name,
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		logger:    logger.With("component", "storage", "adapter", name),
	}
}

func (a *LocalAdapter) Name() string { return a.name }

func (a *LocalAdapter) StoragePath() string { return a.root }

// TargetDir returns the current year/month directory under the root.
func (a *LocalAdapter) TargetDir() string {
	return filepath.Join(a.root, time.Now().UTC().Format("2006/01"))
}

// UniqueFileName probes targetDir for a free name, suffixing -1, -2, ...
// on collision.
func (a *LocalAdapter) UniqueFileName(filename, targetDir string) (string, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	candidate := filepath.Join(targetDir, filename)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", &types.StorageError{Adapter: a.name, Path: candidate, Err: err}
		}
		candidate = filepath.Join(targetDir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
}

// SaveRaw writes data at the storage-relative path and returns the serving
// path.
func (a *LocalAdapter) SaveRaw(data []byte, relPath string) (string, error) {
	target := filepath.Join(a.root, relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &types.StorageError{Adapter: a.name, Path: target, Err: err}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", &types.StorageError{Adapter: a.name, Path: target, Err: err}
	}

	stored := a.urlPrefix + "/" + path.Clean(filepath.ToSlash(relPath))
	a.logger.Debug("asset stored", "path", stored, "size", len(data))
	return stored, nil
}
