package types

import (
	"net/http"
	"time"
)

// RequestOptions carries per-request parameters through the queue. The queue
// treats it as opaque; only the executor interprets it.
type RequestOptions struct {
	// Headers are extra HTTP headers to send with the request.
	Headers http.Header

	// Timeout, when > 0, adds a deadline to the request. The fetcher's
	// configured client timeout still applies; the shorter of the two wins.
	Timeout time.Duration
}
