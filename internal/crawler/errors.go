package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMissing means a required configuration source is absent. It
	// aborts the run before any network activity.
	ErrConfigMissing = errors.New("configuration source missing")
	// ErrFetch is matched by every *FetchError.
	ErrFetch = errors.New("fetch failed")
	// ErrInvalidSite marks a site row that cannot be scraped at all.
	ErrInvalidSite = errors.New("invalid site configuration")
	// ErrFeedLoad means the persisted feed could not be read or parsed.
	ErrFeedLoad = errors.New("feed load failed")
	// ErrNotFound is returned by blob stores for missing objects.
	ErrNotFound = errors.New("object not found")
)

// FetchError describes a network, timeout or status failure for one URL.
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

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
