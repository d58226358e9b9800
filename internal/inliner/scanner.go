package inliner

import (
	"strings"
)

// Token is the sentinel prefix written into rewritten references. The CMS
// expands it to the site URL at serve time.
const Token = "__GHOST_URL__"

// FindMatches locates domain-rooted URL references inside content, which is
// typically a JSON-serialized document body carrying escape sequences. A
// match runs from the domain to the nearest terminator: quote, closing
// paren, apostrophe, whitespace, '<', backslash, HTML-encoded quote, a comma
// introducing the next URL, or end of string. Matching is case-insensitive;
// the caller deduplicates before fetching.
func FindMatches(content, domain string) []string {
	if domain == "" {
		return nil
	}

	lower := strings.ToLower(content)
	needle := strings.ToLower(domain)

	var matches []string
	for start := 0; start < len(content); {
		i := strings.Index(lower[start:], needle)
		if i < 0 {
			break
		}
		i += start

		j := i + len(needle)
		for j < len(content) && !isTerminator(lower, j) {
			j++
		}

		// The whitespace terminator leaves a list comma attached.
		match := strings.TrimSuffix(content[i:j], ",")
		matches = append(matches, match)
		start = j
		if start == i {
			start++ // zero-width progress guard
		}
	}
	return matches
}

// isTerminator reports whether position j of the lowercased content ends a
// URL reference.
func isTerminator(lower string, j int) bool {
	switch lower[j] {
	case '"', ')', '\'', '<', '\\', ' ', '\t', '\n', '\r':
		return true
	case ',':
		rest := lower[j+1:]
		return strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://")
	case '&':
		return strings.HasPrefix(lower[j:], "&quot;")
	}
	return false
}

// Dedupe removes duplicate references preserving first-seen order.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Rewrite replaces every literal occurrence of src in content with the
// reference token for storedPath. No other character positions change.
func Rewrite(content, src, storedPath string) string {
	return strings.ReplaceAll(content, src, Token+storedPath)
}
