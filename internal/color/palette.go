// Package color maps sampled favicon colors onto a fixed palette.
package color

import (
	"fmt"
	"strings"

	"linkstash/internal/links"
)

// Entry is one matchable palette color.
type Entry struct {
	Name string
	RGB  links.RGB
}

type namedHex struct {
	name string
	hex  string
}

// rawTable is the design-system color table the palette is drawn from:
// the 400 shade of each Tailwind family plus the standalone colors.
// Black and white are present here but filtered out of the matchable
// set; they are gravity wells, pulling in matches from better colors.
var rawTable = []namedHex{
	{"black", "#000"},
	{"white", "#fff"},
	{"slate", "#94A3B8"},
	{"gray", "#9CA3AF"},
	{"zinc", "#A1A1AA"},
	{"neutral", "#A3A3A3"},
	{"stone", "#A8A29E"},
	{"red", "#F87171"},
	{"orange", "#FB923C"},
	{"amber", "#FBBF24"},
	{"yellow", "#FACC15"},
	{"lime", "#A3E635"},
	{"green", "#4ADE80"},
	{"emerald", "#34D399"},
	{"teal", "#2DD4BF"},
	{"cyan", "#22D3EE"},
	{"sky", "#38BDF8"},
	{"blue", "#60A5FA"},
	{"indigo", "#818CF8"},
	{"violet", "#A78BFA"},
	{"purple", "#C084FC"},
	{"fuchsia", "#E879F9"},
	{"pink", "#F472B6"},
	{"rose", "#FB7185"},
}

func buildPalette(table []namedHex) ([]Entry, error) {
	entries := make([]Entry, 0, len(table))
	for _, nh := range table {
		if isGravityWell(nh.hex) {
			continue
		}
		rgb, err := ParseHex(nh.hex)
		if err != nil {
			return nil, fmt.Errorf("palette entry %q: %w", nh.name, err)
		}
		entries = append(entries, Entry{Name: nh.name, RGB: rgb})
	}
	return entries, nil
}

func isGravityWell(hex string) bool {
	switch strings.ToLower(hex) {
	case "#000", "#000000", "#fff", "#ffffff":
		return true
	}
	return false
}

// ParseHex converts a #rgb or #rrggbb color to an RGB triple.
func ParseHex(s string) (links.RGB, error) {
	h := strings.TrimPrefix(strings.ToLower(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return links.RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(h, "%02x%02x%02x", &r, &g, &b); err != nil {
		return links.RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return links.RGB{R: r, G: g, B: b}, nil
}
