// Package links defines core types shared across subsystems.
package links

import (
	"encoding/json"
	"fmt"
	"time"
)

// RGB is a color sample taken from a favicon.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// MarshalJSON encodes the color as a [r, g, b] triple, matching the
// persisted representation.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

// UnmarshalJSON decodes a [r, g, b] triple.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var triple [3]uint8
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("unmarshal rgb triple: %w", err)
	}
	c.R, c.G, c.B = triple[0], triple[1], triple[2]
	return nil
}

// Link is a stored link row. Owner never leaves the server.
type Link struct {
	ID          int64      `json:"id"`
	Owner       string     `json:"-"`
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	FaviconURL  string     `json:"favicon,omitempty"`
	FaviconRGB  *RGB       `json:"favicon_color,omitempty"`
	FaviconName string     `json:"favicon_color_name,omitempty"`
	SavedAt     time.Time  `json:"saved_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the link sits in the recycle bin.
func (l Link) Deleted() bool {
	return l.DeletedAt != nil
}

// NewLink carries the fields of a link about to be inserted. ID and
// SavedAt are assigned by the store.
type NewLink struct {
	Owner       string
	URL         string
	Domain      string
	Title       string
	Description string
	FaviconURL  string
	FaviconRGB  *RGB
	FaviconName string
}

// PageFields is the raw extraction result for one fetched page.
type PageFields struct {
	// FinalURL is the post-redirect URL reported by the browser.
	FinalURL    string
	Title       string
	Description string
	// FaviconHref is the icon candidate parsed from page markup,
	// already resolved against FinalURL. Empty for non-HTML pages.
	FaviconHref string
	ContentType string
	StatusCode  int
	// HTML reports whether the page classified as HTML; only HTML
	// pages get favicon resolution.
	HTML bool
}

// Favicon is a successfully resolved favicon with its sampled color and
// the nearest palette label.
type Favicon struct {
	URL         string
	RGB         RGB
	PaletteName string
}

// Group is one section of the grouped list view.
type Group struct {
	Label string `json:"label"`
	Links []Link `json:"links"`
}

// Event is published after a link changes state.
type Event struct {
	Type   string    `json:"type"`
	Owner  string    `json:"owner"`
	LinkID int64     `json:"link_id"`
	URL    string    `json:"url"`
	Domain string    `json:"domain"`
	At     time.Time `json:"at"`
}

// Event types published to the configured topic.
const (
	EventLinkSaved    = "link.saved"
	EventLinkBinned   = "link.binned"
	EventLinkRestored = "link.restored"
)
