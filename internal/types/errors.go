package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrMediaUnavailable = errors.New("media could not be fetched")
	ErrNoStorageAdapter = errors.New("no storage adapter for extension")
)

// FetchError wraps errors that occur while fetching remote media. The queue
// manager decides retryability from StatusCode against its configured set;
// transport errors carry no status and get a single attempt.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status code buried in err, or 0 when err
// carries none (network errors, invalid URLs).
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// StorageError wraps errors from the storage adapter layer.
type StorageError struct {
	Adapter string
	Path    string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s) for %s: %v", e.Adapter, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DataImportError is the envelope for per-resource failures during a
// migration run. One resource's failure never aborts the batch; the error is
// logged with the resource id and the run continues.
type DataImportError struct {
	Resource string
	ID       string
	Err      error
}

func (e *DataImportError) Error() string {
	return fmt.Sprintf("data import error for %s %s: %v", e.Resource, e.ID, e.Err)
}

func (e *DataImportError) Unwrap() error { return e.Err }
