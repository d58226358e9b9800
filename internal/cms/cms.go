// Package cms holds the narrow contracts for the content models the inliner
// walks. The migration only reads scalar fields and document bodies and
// writes field updates; everything else about the CMS stays behind these
// interfaces.
package cms

import (
	"context"
)

// Context marks who is acting. Migrations run with the internal context so
// model-layer permission checks stay out of the way.
type Context struct {
	Internal bool
}

// Options parameterizes model calls.
type Options struct {
	Context Context
	ID      string
	Limit   string
}

// Internal returns the options used for all migration reads and writes.
func Internal() Options {
	return Options{Context: Context{Internal: true}}
}

// Resource is one model instance: a post, post metadata row, tag, or user.
type Resource interface {
	ID() string
	Get(field string) string
}

// Page is one page of resources. Migrations request Limit "all".
type Page struct {
	Data []Resource
}

// Model is the persistence surface the inliner needs.
type Model interface {
	// FindAll returns every resource. Used for posts.
	FindAll(ctx context.Context, opts Options) ([]Resource, error)

	// FindPage returns a page of resources. Used with Limit "all" for
	// post metadata, tags, and users.
	FindPage(ctx context.Context, opts Options) (*Page, error)

	// Edit persists field updates on the resource named by opts.ID.
	Edit(ctx context.Context, fields map[string]string, opts Options) error
}

// Models bundles the four content models a migration touches.
type Models struct {
	Posts     Model
	PostsMeta Model
	Tags      Model
	Users     Model
}
