package headless

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestExtensionFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        string
	}{
		{"text/html", "html"},
		{"text/html; charset=utf-8", "html"},
		{"application/xhtml+xml", "html"},
		{"image/png", "png"},
		{"application/pdf", "pdf"},
		{"application/x-made-up", "x-made-up"},
		{"", ""},
		{"garbage;;;", ""},
	}
	for _, tc := range tests {
		t.Run(tc.contentType, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, extensionFor(tc.contentType))
		})
	}
}

func TestUntitled(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Untitled pdf", untitled("pdf"))
	require.Equal(t, "Untitled file", untitled(""))
}

func TestResolveRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{"relative path", "https://example.com/articles/1", "/favicon.png", "https://example.com/favicon.png"},
		{"relative without slash", "https://example.com/articles/1", "icon.png", "https://example.com/articles/icon.png"},
		{"absolute href kept", "https://example.com/", "https://cdn.example.net/i.ico", "https://cdn.example.net/i.ico"},
		{"protocol-relative", "https://example.com/", "//cdn.example.net/i.ico", "https://cdn.example.net/i.ico"},
		{"empty href", "https://example.com/", "", ""},
		{"bad base", "http://%zz", "/x.ico", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, resolveRef(tc.base, tc.href))
		})
	}
}

func TestResponseMetaKeepsFirstDocumentResponse(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	// Non-document events are ignored.
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 200, URL: "https://cdn.example.com/a.png"},
	})

	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status: 301,
			URL:    "https://example.com/final",
			Headers: network.Headers{
				"content-type": "text/html; charset=utf-8",
			},
		},
	})

	// Later document responses do not overwrite the first.
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://other.example.com/"},
	})

	status, contentType, url := meta.snapshot()
	require.Equal(t, 301, status)
	require.Equal(t, "text/html; charset=utf-8", contentType)
	require.Equal(t, "https://example.com/final", url)
}

func TestResponseMetaEmptySnapshot(t *testing.T) {
	t.Parallel()

	status, contentType, url := newResponseMeta().snapshot()
	require.Zero(t, status)
	require.Empty(t, contentType)
	require.Empty(t, url)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	require.Equal(t, 60*time.Second, cfg.FetchTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
}
