// Package ingest implements the link capture pipeline: fetch, favicon
// resolution, dedup, persist.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"linkstash/internal/links"
	"linkstash/internal/metrics"
)

// Service orchestrates one link add end to end.
type Service struct {
	fetcher   links.Fetcher
	favicons  links.FaviconResolver
	store     links.Store
	publisher links.Publisher
	clock     links.Clock
	topic     string
	logger    *zap.Logger
}

// NewService constructs a Service. publisher may be nil to disable
// events.
func NewService(
	fetcher links.Fetcher,
	favicons links.FaviconResolver,
	store links.Store,
	publisher links.Publisher,
	clock links.Clock,
	topic string,
	logger *zap.Logger,
) *Service {
	return &Service{
		fetcher:   fetcher,
		favicons:  favicons,
		store:     store,
		publisher: publisher,
		clock:     clock,
		topic:     topic,
		logger:    logger,
	}
}

// Add fetches rawURL, resolves its favicon, and persists a link for
// owner. The bool is false when the URL was already saved (a silent
// no-op, not an error). Favicon failures never fail the add; fetch
// failures abort it; persistence failures surface as *links.IngestError.
func (s *Service) Add(ctx context.Context, owner, rawURL string) (links.Link, bool, error) {
	start := s.clock.Now()
	fields, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		metrics.ObserveFetch(time.Since(start), "error")
		metrics.RecordIngest("fetch_error")
		return links.Link{}, false, err
	}
	metrics.ObserveFetch(time.Since(start), "ok")

	// Domain always derives from the final post-redirect URL, so a
	// link shared via a redirector dedupes and displays under its true
	// destination.
	domain, err := links.Domain(fields.FinalURL)
	if err != nil {
		metrics.RecordIngest("fetch_error")
		return links.Link{}, false, &links.FetchError{
			URL: rawURL,
			Err: fmt.Errorf("derive domain: %w", err),
		}
	}

	exists, err := s.store.ExistsActive(ctx, owner, fields.FinalURL)
	if err != nil {
		return links.Link{}, false, s.ingestFailure(owner, fields.FinalURL, err)
	}
	if exists {
		metrics.RecordIngest("duplicate")
		s.logger.Debug("link already saved",
			zap.String("owner", owner), zap.String("url", fields.FinalURL))
		return links.Link{}, false, nil
	}

	record := links.NewLink{
		Owner:       owner,
		URL:         fields.FinalURL,
		Domain:      domain,
		Title:       fields.Title,
		Description: fields.Description,
	}
	if fields.HTML {
		if fav := s.favicons.Resolve(ctx, fields.FinalURL, fields.FaviconHref); fav != nil {
			record.FaviconURL = fav.URL
			rgb := fav.RGB
			record.FaviconRGB = &rgb
			record.FaviconName = fav.PaletteName
			metrics.RecordFavicon(true)
		} else {
			metrics.RecordFavicon(false)
		}
	}

	stored, inserted, err := s.store.Insert(ctx, record)
	if err != nil {
		return links.Link{}, false, s.ingestFailure(owner, fields.FinalURL, err)
	}
	if !inserted {
		// Lost a concurrent race for the same (owner, url); same
		// outcome as the dedup check above.
		metrics.RecordIngest("duplicate")
		return links.Link{}, false, nil
	}

	metrics.RecordIngest("saved")
	s.logger.Info("link saved",
		zap.String("owner", owner),
		zap.Int64("link_id", stored.ID),
		zap.String("domain", stored.Domain))
	s.publish(ctx, links.EventLinkSaved, stored)
	return stored, true, nil
}

func (s *Service) ingestFailure(owner, url string, err error) error {
	metrics.RecordIngest("store_error")
	s.logger.Error("link persistence failed",
		zap.String("owner", owner), zap.String("url", url), zap.Error(err))
	return &links.IngestError{Err: err}
}

func (s *Service) publish(ctx context.Context, eventType string, link links.Link) {
	if s.publisher == nil {
		return
	}
	event := links.Event{
		Type:   eventType,
		Owner:  link.Owner,
		LinkID: link.ID,
		URL:    link.URL,
		Domain: link.Domain,
		At:     s.clock.Now(),
	}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("publish link event",
			zap.String("type", eventType), zap.Error(err))
	}
}
