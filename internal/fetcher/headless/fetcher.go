// Package headless fetches pages with headless Chrome and extracts the
// display fields a stored link needs.
package headless

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"linkstash/internal/browser"
	"linkstash/internal/links"
)

// Config controls fetch behavior.
type Config struct {
	// FetchTimeout bounds one navigation end to end. Slow pages are
	// rejected rather than hung on, so adversarial or crawling-speed
	// targets can't pin a pool page.
	FetchTimeout time.Duration
	// SettleDelay is a short wait after body readiness. Some sites
	// (Twitter, notably) have nothing useful loaded at the 'load'
	// event.
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 60 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	return c
}

// Fetcher implements links.Fetcher on top of the page pool.
type Fetcher struct {
	pool   *browser.Pool
	cfg    Config
	logger *zap.Logger
}

// New constructs a Fetcher.
func New(pool *browser.Pool, cfg Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{pool: pool, cfg: cfg.withDefaults(), logger: logger}
}

// Fetch navigates to rawURL (after redirector unwrapping) and extracts
// title, description, and a favicon candidate according to the declared
// content type. The pool page is released on every exit path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (links.PageFields, error) {
	target := links.CanonicalURL(rawURL)

	page, err := f.pool.Acquire(ctx)
	if err != nil {
		return links.PageFields{}, err
	}
	defer f.pool.Release(page)

	taskCtx, cancel := context.WithTimeout(page.Context(), f.cfg.FetchTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var finalURL string
	err = chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Location(&finalURL),
	)
	status, contentType, responseURL := meta.snapshot()
	if err != nil {
		return links.PageFields{}, &links.FetchError{
			URL:        target,
			StatusCode: status,
			Err:        fmt.Errorf("chromedp run: %w", err),
		}
	}
	if finalURL == "" {
		finalURL = responseURL
	}
	if finalURL == "" {
		finalURL = target
	}

	fields := links.PageFields{
		FinalURL:    finalURL,
		ContentType: contentType,
		StatusCode:  status,
	}

	ext := extensionFor(contentType)
	if ext != "html" {
		fields.Title = untitled(ext)
		return fields, nil
	}

	var title, description, faviconHref string
	err = chromedp.Run(taskCtx,
		chromedp.Title(&title),
		chromedp.Evaluate(metaDescriptionJS, &description),
		chromedp.Evaluate(faviconHrefJS, &faviconHref),
	)
	if err != nil {
		return links.PageFields{}, &links.FetchError{
			URL:        target,
			StatusCode: status,
			Err:        fmt.Errorf("extract fields: %w", err),
		}
	}

	fields.HTML = true
	fields.Title = links.Truncate(links.MaxFieldLength, title)
	fields.Description = links.Truncate(links.MaxFieldLength, description)
	fields.FaviconHref = resolveRef(finalURL, faviconHref)
	return fields, nil
}

const (
	metaDescriptionJS = `document.querySelector('meta[name="description"]')?.getAttribute('content') ?? ''`
	faviconHrefJS     = `document.querySelector('link[rel~="icon"]')?.getAttribute('href') ?? ''`
)

// extensionFor maps a declared content type to a file extension. An
// empty result means the type was unrecognized or unparseable.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return ""
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return "html"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	// Best-effort guess from the subtype.
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return sub
	}
	return ""
}

func untitled(ext string) string {
	if ext == "" {
		ext = "file"
	}
	return "Untitled " + ext
}

func resolveRef(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}

// responseMeta records the first document response seen on the page.
type responseMeta struct {
	once        sync.Once
	status      int
	contentType string
	url         string
	mu          sync.Mutex
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.status = int(resp.Response.Status)
		m.url = resp.Response.URL
		for key, value := range resp.Response.Headers {
			if strings.EqualFold(key, "Content-Type") {
				m.contentType = fmt.Sprint(value)
			}
		}
	})
}

func (m *responseMeta) snapshot() (int, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.contentType, m.url
}
