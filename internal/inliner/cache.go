package inliner

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// URLCache is the job-scoped mapping from normalized URL to stored serving
// path. Both the content-body and scalar-field paths key on the same
// normalized string, so a miss in one becomes a hit in the other and both
// converge on the same stored path. Concurrent lookups for one URL block
// behind a single owner fetch.
type URLCache struct {
	mu      sync.RWMutex
	entries map[string]string
	group   singleflight.Group
}

// NewURLCache creates an empty cache.
func NewURLCache() *URLCache {
	return &URLCache{entries: make(map[string]string)}
}

// Get returns the stored path for a normalized URL.
func (c *URLCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	path, ok := c.entries[key]
	return path, ok
}

// Set records the stored path for a normalized URL.
func (c *URLCache) Set(key, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = path
}

// Len returns the number of cached URLs.
func (c *URLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear empties the cache. Called at job end.
func (c *URLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}

// Resolve returns the cached path for key, or runs fetch exactly once across
// concurrent callers and caches its result. Failed fetches are not cached;
// a later encounter retries. The second return reports a cache hit.
func (c *URLCache) Resolve(key string, fetch func() (string, error)) (string, bool, error) {
	if path, ok := c.Get(key); ok {
		return path, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if path, ok := c.Get(key); ok {
			return path, nil
		}
		path, err := fetch()
		if err != nil {
			return "", err
		}
		c.Set(key, path)
		return path, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}
