package links

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL unwraps known redirector URLs into the page they point
// at. YouTube links shared through other sites' outbound redirectors
// arrive with the real watch page embedded in a "url" query parameter;
// those are unwrapped so the link is fetched, deduplicated, and
// displayed under its true destination. Anything unrecognized is
// returned unchanged.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	embedded := u.Query().Get("url")
	if embedded == "" || !isHost(u, "youtube.com") {
		return raw
	}
	inner, err := url.Parse(embedded)
	if err != nil {
		return raw
	}
	if isHost(inner, "youtube.com") &&
		strings.HasPrefix(inner.Path, "/watch") &&
		inner.Query().Has("v") {
		return embedded
	}
	return raw
}

func isHost(u *url.URL, suffix string) bool {
	host := strings.ToLower(u.Hostname())
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// Domain extracts the lowercased hostname a link is filed under. It is
// always derived from the final stored URL, never from user input.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}

// MaxFieldLength caps stored titles and descriptions. Arbitrarily the
// size of a tweet, so a pathological page can't spam the database.
const MaxFieldLength = 280

const ellipsis = "..."

// Truncate shortens s to at most max runes, replacing the tail with an
// ellipsis marker when anything was cut.
func Truncate(max int, s string) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}
