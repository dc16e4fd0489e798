package color

import (
	"fmt"

	"linkstash/internal/links"
)

// Channel weights approximate human luminance sensitivity: green
// dominates perceived brightness, blue contributes least.
const (
	weightR = 0.3
	weightG = 0.59
	weightB = 0.11
)

// Matcher finds the nearest palette entry for a sampled color.
type Matcher struct {
	palette []Entry
}

// NewMatcher precomputes the matchable palette from the static table.
func NewMatcher() (*Matcher, error) {
	palette, err := buildPalette(rawTable)
	if err != nil {
		return nil, fmt.Errorf("build palette: %w", err)
	}
	if len(palette) == 0 {
		return nil, fmt.Errorf("palette is empty after filtering")
	}
	return &Matcher{palette: palette}, nil
}

// Palette returns a copy of the matchable entries.
func (m *Matcher) Palette() []Entry {
	out := make([]Entry, len(m.palette))
	copy(out, m.palette)
	return out
}

// Nearest returns the palette entry with the smallest weighted distance
// to c. Ties resolve to the earliest entry, so results are
// deterministic for a fixed palette. The palette is tens of entries; a
// linear scan is plenty.
func (m *Matcher) Nearest(c links.RGB) Entry {
	best := m.palette[0]
	bestDist := distance(best.RGB, c)
	for _, entry := range m.palette[1:] {
		if d := distance(entry.RGB, c); d < bestDist {
			best = entry
			bestDist = d
		}
	}
	return best
}

func distance(a, b links.RGB) float64 {
	dr := (float64(a.R) - float64(b.R)) * weightR
	dg := (float64(a.G) - float64(b.G)) * weightG
	db := (float64(a.B) - float64(b.B)) * weightB
	return dr*dr + dg*dg + db*db
}
