package links

import (
	"context"
	"io"
	"time"
)

// Store persists link rows.
type Store interface {
	// Insert stores a new link and returns it with ID and SavedAt
	// assigned. The bool is false when an active row with the same
	// (owner, url) already exists and nothing was inserted.
	Insert(ctx context.Context, link NewLink) (Link, bool, error)
	ExistsActive(ctx context.Context, owner, url string) (bool, error)
	ListActive(ctx context.Context, owner string) ([]Link, error)
	ListDeleted(ctx context.Context, owner string) ([]Link, error)
	SoftDelete(ctx context.Context, owner string, id int64, at time.Time) error
	Restore(ctx context.Context, owner string, id int64) error
	PurgeExcess(ctx context.Context, owner string, keep int) error
	Delete(ctx context.Context, owner string, id int64) error
}

// Fetcher loads a URL in a browser page and extracts display fields.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (PageFields, error)
}

// FaviconResolver finds and samples a favicon for a page. A nil result
// means every candidate failed; that is not an error.
type FaviconResolver interface {
	Resolve(ctx context.Context, pageURL, markupHref string) *Favicon
}

// Publisher pushes link events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
