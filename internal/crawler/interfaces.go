package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a URL and returns the response body. Failures are
// reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BlobStore reads and writes whole objects. PutObject must be atomic: readers
// observe either the previous object or the complete new one.
type BlobStore interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Archive records newly published jobs outside the feed.
type Archive interface {
	StoreJobs(ctx context.Context, jobs []Job) (int, error)
	Close()
}

// Publisher pushes new-job events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
