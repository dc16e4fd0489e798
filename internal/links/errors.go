package links

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is returned when no browser page became available
// within the pool wait timeout. Callers may retry.
var ErrPoolExhausted = errors.New("browser page pool exhausted")

// ErrNotFound is returned by stores when no row matched.
var ErrNotFound = errors.New("link not found")

// FetchError reports a failed page fetch. StatusCode is zero when the
// failure happened before any document response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IngestError wraps a persistence failure during link ingestion. The
// wrapped detail is logged server-side; user-facing surfaces report it
// generically.
type IngestError struct {
	Err error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("store link: %v", e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
