package fetcher

import (
	"strings"
)

// encodeURI reproduces the JavaScript encodeURI function byte for byte: it
// percent-encodes every byte except unreserved and reserved URI characters
// and '#'. The cache key contract depends on this exact transformation, so
// net/url's piecewise escaping is not a substitute.
func encodeURI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnescaped(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"

// isURIUnescaped reports whether encodeURI leaves c as-is:
// A-Z a-z 0-9 ; , / ? : @ & = + $ - _ . ! ~ * ' ( ) #
func isURIUnescaped(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case ';', ',', '/', '?', ':', '@', '&', '=', '+', '$',
		'-', '_', '.', '!', '~', '*', '\'', '(', ')', '#':
		return true
	}
	return false
}
