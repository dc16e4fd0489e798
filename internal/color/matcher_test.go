package color

import (
	"testing"

	"github.com/stretchr/testify/require"

	"linkstash/internal/links"
)

func TestNewMatcherExcludesBlackAndWhite(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher()
	require.NoError(t, err)

	for _, entry := range m.Palette() {
		require.NotEqual(t, "black", entry.Name)
		require.NotEqual(t, "white", entry.Name)
	}
	require.Len(t, m.Palette(), len(rawTable)-2)
}

func TestNearest(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   links.RGB
		want string
	}{
		{"exact palette color", links.RGB{R: 0xF8, G: 0x71, B: 0x71}, "red"},
		{"near-black maps to a real color, not black", links.RGB{R: 5, G: 5, B: 5}, ""},
		{"pure white maps to a real color", links.RGB{R: 255, G: 255, B: 255}, ""},
		{"strong blue", links.RGB{R: 0x55, G: 0xA0, B: 0xFF}, "blue"},
		{"bright yellow", links.RGB{R: 0xFA, G: 0xCC, B: 0x15}, "yellow"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := m.Nearest(tc.in)
			if tc.want != "" {
				require.Equal(t, tc.want, got.Name)
			}
			require.NotEqual(t, "black", got.Name)
			require.NotEqual(t, "white", got.Name)
		})
	}
}

func TestNearestDeterministic(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher()
	require.NoError(t, err)

	sample := links.RGB{R: 120, G: 130, B: 140}
	first := m.Nearest(sample)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, m.Nearest(sample))
	}
}

func TestGreenWeighsMoreThanBlue(t *testing.T) {
	t.Parallel()

	// The same channel delta must cost more on green than on blue.
	base := links.RGB{R: 100, G: 100, B: 100}
	greenShift := links.RGB{R: 100, G: 140, B: 100}
	blueShift := links.RGB{R: 100, G: 100, B: 140}
	require.Greater(t, distance(base, greenShift), distance(base, blueShift))
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    links.RGB
		wantErr bool
	}{
		{in: "#94A3B8", want: links.RGB{R: 0x94, G: 0xA3, B: 0xB8}},
		{in: "#fff", want: links.RGB{R: 255, G: 255, B: 255}},
		{in: "#000", want: links.RGB{}},
		{in: "1138", wantErr: true},
		{in: "#gggggg", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseHex(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
