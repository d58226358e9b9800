package inliner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// srcsetSeparator splits srcset candidates; each candidate is a URL followed
// by an optional width or density descriptor.
const srcsetSeparator = ","

// FindHTMLMatches extracts domain-rooted references from the rendered HTML
// copy of a post: src, srcset, href, and poster attributes. The rewrite
// itself stays literal string replacement, so the HTML is never re-serialized.
func FindHTMLMatches(content, domain string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	needle := strings.ToLower(domain)
	var matches []string

	doc.Find("[src], [srcset], [href], [poster]").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "href", "poster"} {
			if v, ok := sel.Attr(attr); ok && hasDomainPrefix(v, needle) {
				matches = append(matches, v)
			}
		}
		if v, ok := sel.Attr("srcset"); ok {
			for _, candidate := range strings.Split(v, srcsetSeparator) {
				fields := strings.Fields(candidate)
				if len(fields) > 0 && hasDomainPrefix(fields[0], needle) {
					matches = append(matches, fields[0])
				}
			}
		}
	})

	return matches
}

func hasDomainPrefix(value, lowerDomain string) bool {
	return strings.HasPrefix(strings.ToLower(value), lowerDomain)
}
