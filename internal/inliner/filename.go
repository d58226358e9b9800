package inliner

import (
	"strings"

	"github.com/gosimple/slug"
)

// maxSlugLength caps the filename stem. The tail of a CDN-style URL is more
// discriminating than the head, so trimming keeps the last characters.
const maxSlugLength = 248

// MediaFilename derives a slug-safe storage name from the requested URL and
// detected extension (without dot). Query strings can form part of the
// uniqueness of the URL, so they stay in the filename material.
func MediaFilename(rawURL, ext string) string {
	name := rawURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if ext != "" {
		// Strip the extension only where it ends the path portion; an
		// embedded ".<ext>" is part of the name material, and the
		// query-string tail stays.
		base, tail := name, ""
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			base, tail = name[:i], name[i:]
		}
		name = strings.TrimSuffix(base, "."+ext) + tail
	}

	s := slug.Make(name)
	if len(s) > maxSlugLength {
		s = s[len(s)-maxSlugLength:]
	}
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSuffix(s, "-")

	return s + "." + ext
}
