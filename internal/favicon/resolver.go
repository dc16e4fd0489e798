// Package favicon resolves a page's favicon and samples its accent
// color.
package favicon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	// Raster formats sampled directly.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/mat/besticon/v3/ico"
	"go.uber.org/zap"

	"linkstash/internal/color"
	"linkstash/internal/links"
)

// Hasher computes cache keys for stored favicon bytes.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Config controls favicon fetching.
type Config struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	// CachePrefix is the blob path prefix for cached favicon bytes.
	CachePrefix string
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 1 << 20
	}
	if c.CachePrefix == "" {
		c.CachePrefix = "favicons"
	}
	return c
}

// Resolver implements links.FaviconResolver. Every failure mode
// (network, decode, convert, sample) is absorbed: a link without a
// favicon is fully valid.
type Resolver struct {
	client  *http.Client
	matcher *color.Matcher
	cache   links.BlobStore
	hasher  Hasher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Resolver. cache may be nil to disable the favicon
// blob cache.
func New(matcher *color.Matcher, cache links.BlobStore, hasher Hasher, cfg Config, logger *zap.Logger) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		matcher: matcher,
		cache:   cache,
		hasher:  hasher,
		cfg:     cfg,
		logger:  logger,
	}
}

// Resolve tries the conventional root favicon path first, then the
// candidate parsed from page markup. Candidates are produced lazily and
// evaluation stops at the first success; nil means everything failed.
func (r *Resolver) Resolve(ctx context.Context, pageURL, markupHref string) *links.Favicon {
	candidates := []func() string{
		func() string { return rootFavicon(pageURL) },
		func() string { return markupHref },
	}
	for _, candidate := range candidates {
		candidateURL := candidate()
		if candidateURL == "" {
			continue
		}
		fav, err := r.sample(ctx, candidateURL)
		if err != nil {
			r.logger.Debug("favicon candidate failed",
				zap.String("candidate", candidateURL), zap.Error(err))
			continue
		}
		return fav
	}
	return nil
}

func (r *Resolver) sample(ctx context.Context, imgURL string) (*links.Favicon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch favicon: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Debug("close favicon body", zap.Error(closeErr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch favicon: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read favicon body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty favicon body")
	}

	contentType := resp.Header.Get("Content-Type")
	img, err := decodeImage(data, contentType, imgURL)
	if err != nil {
		return nil, fmt.Errorf("decode favicon: %w", err)
	}

	rgb, err := dominantColor(img)
	if err != nil {
		return nil, fmt.Errorf("sample favicon color: %w", err)
	}
	entry := r.matcher.Nearest(rgb)

	r.cacheBytes(ctx, contentType, data)

	return &links.Favicon{
		URL:         imgURL,
		RGB:         rgb,
		PaletteName: entry.Name,
	}, nil
}

// cacheBytes stores the raw favicon in the blob cache, keyed by content
// hash. Best effort only.
func (r *Resolver) cacheBytes(ctx context.Context, contentType string, data []byte) {
	if r.cache == nil || r.hasher == nil {
		return
	}
	key, err := r.hasher.Hash(data)
	if err != nil {
		r.logger.Debug("hash favicon", zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s", r.cfg.CachePrefix, key)
	if _, err := r.cache.PutObject(ctx, path, contentType, bytes.NewReader(data)); err != nil {
		r.logger.Debug("cache favicon", zap.String("path", path), zap.Error(err))
	}
}

// decodeImage turns favicon bytes into a sample-able raster image. ICO
// files are transcoded first; the conversion happens in memory and can
// fail independently of the fetch.
func decodeImage(data []byte, contentType, imgURL string) (image.Image, error) {
	if isICO(data, contentType) {
		img, err := ico.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("transcode ico: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	// Plenty of sites park a PNG at /favicon.ico, so the path suffix is
	// only a hint once direct decoding has failed.
	if hasICOPath(imgURL) {
		if img, icoErr := ico.Decode(bytes.NewReader(data)); icoErr == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("decode image: %w", err)
}

var icoMagic = []byte{0x00, 0x00, 0x01, 0x00}

func isICO(data []byte, contentType string) bool {
	if bytes.HasPrefix(data, icoMagic) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/x-icon", "image/vnd.microsoft.icon":
		return true
	}
	return false
}

func hasICOPath(imgURL string) bool {
	u, err := url.Parse(imgURL)
	return err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".ico")
}

func dominantColor(img image.Image) (links.RGB, error) {
	items, err := prominentcolor.Kmeans(img)
	if err != nil {
		return links.RGB{}, fmt.Errorf("kmeans: %w", err)
	}
	if len(items) == 0 {
		return links.RGB{}, fmt.Errorf("no dominant color found")
	}
	dominant := items[0].Color
	return links.RGB{
		R: uint8(dominant.R),
		G: uint8(dominant.G),
		B: uint8(dominant.B),
	}, nil
}

func rootFavicon(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s/favicon.ico", u.Scheme, u.Host)
}
