package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkstash/internal/links"
	"linkstash/internal/publisher/memory"
)

type fakeFetcher struct {
	fields links.PageFields
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (links.PageFields, error) {
	f.calls++
	return f.fields, f.err
}

type fakeResolver struct {
	fav   *links.Favicon
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ string) *links.Favicon {
	f.calls++
	return f.fav
}

type fakeStore struct {
	links.Store

	exists      bool
	existsErr   error
	existsURL   string
	inserted    bool
	insertErr   error
	insertedArg links.NewLink
	nextID      int64
}

func (f *fakeStore) ExistsActive(_ context.Context, _, url string) (bool, error) {
	f.existsURL = url
	return f.exists, f.existsErr
}

func (f *fakeStore) Insert(_ context.Context, link links.NewLink) (links.Link, bool, error) {
	f.insertedArg = link
	if f.insertErr != nil {
		return links.Link{}, false, f.insertErr
	}
	if !f.inserted {
		return links.Link{}, false, nil
	}
	return links.Link{
		ID:     f.nextID,
		Owner:  link.Owner,
		URL:    link.URL,
		Domain: link.Domain,
		Title:  link.Title,
	}, true, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func htmlFields(finalURL string) links.PageFields {
	return links.PageFields{
		FinalURL:    finalURL,
		Title:       "Example",
		ContentType: "text/html",
		StatusCode:  200,
		HTML:        true,
	}
}

func newTestService(fetcher links.Fetcher, resolver links.FaviconResolver, store links.Store, pub links.Publisher) *Service {
	return NewService(fetcher, resolver, store, pub,
		fixedClock{at: time.Unix(1700000000, 0)}, "links", zap.NewNop())
}

func TestAddSavesLinkAndPublishes(t *testing.T) {
	t.Parallel()

	store := &fakeStore{inserted: true, nextID: 11}
	resolver := &fakeResolver{fav: &links.Favicon{
		URL:         "https://example.com/favicon.ico",
		RGB:         links.RGB{R: 96, G: 165, B: 250},
		PaletteName: "blue",
	}}
	pub := memory.New()
	svc := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/post")}, resolver, store, pub)

	stored, inserted, err := svc.Add(context.Background(), "owner-1", "https://example.com/post")
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, int64(11), stored.ID)
	require.Equal(t, "example.com", stored.Domain)

	require.Equal(t, "blue", store.insertedArg.FaviconName)
	require.NotNil(t, store.insertedArg.FaviconRGB)

	events := pub.Events()
	require.Len(t, events, 1)
	event := events[0].Payload.(links.Event)
	require.Equal(t, links.EventLinkSaved, event.Type)
	require.Equal(t, int64(11), event.LinkID)
}

func TestAddDedupesOnFinalURL(t *testing.T) {
	t.Parallel()

	// The submitted URL redirects; dedup and storage must key on the
	// destination the browser actually landed on.
	store := &fakeStore{inserted: true, nextID: 7}
	svc := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/post")},
		&fakeResolver{}, store, nil)

	stored, inserted, err := svc.Add(context.Background(), "owner-1", "https://short.link/abc123")
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, "https://example.com/post", store.existsURL)
	require.Equal(t, "https://example.com/post", store.insertedArg.URL)
	require.Equal(t, "example.com", stored.Domain)
}

func TestAddDuplicateIsSilentNoOp(t *testing.T) {
	t.Parallel()

	store := &fakeStore{exists: true}
	resolver := &fakeResolver{}
	pub := memory.New()
	svc := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/post")}, resolver, store, pub)

	_, inserted, err := svc.Add(context.Background(), "owner-1", "https://example.com/post")
	require.NoError(t, err, "duplicate must not surface an error")
	require.False(t, inserted)
	require.Zero(t, resolver.calls, "no favicon work for a duplicate")
	require.Empty(t, pub.Events())
}

func TestAddInsertRaceLoserIsSilentNoOp(t *testing.T) {
	t.Parallel()

	// Exists check passes but the insert hits the unique index.
	store := &fakeStore{exists: false, inserted: false}
	svc := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/post")},
		&fakeResolver{}, store, nil)

	_, inserted, err := svc.Add(context.Background(), "owner-1", "https://example.com/post")
	require.NoError(t, err)
	require.False(t, inserted)
}

func TestAddFetchFailureAborts(t *testing.T) {
	t.Parallel()

	fetchErr := &links.FetchError{URL: "https://down.example.com", StatusCode: 502, Err: errors.New("bad gateway")}
	svc := newTestService(&fakeFetcher{err: fetchErr}, &fakeResolver{}, &fakeStore{}, nil)

	_, _, err := svc.Add(context.Background(), "owner-1", "https://down.example.com")
	var fe *links.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, 502, fe.StatusCode)
}

func TestAddFaviconFailureTolerated(t *testing.T) {
	t.Parallel()

	store := &fakeStore{inserted: true, nextID: 3}
	svc := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/p")},
		&fakeResolver{fav: nil}, store, nil)

	stored, inserted, err := svc.Add(context.Background(), "owner-1", "https://example.com/p")
	require.NoError(t, err)
	require.True(t, inserted)
	require.Empty(t, stored.FaviconURL)
	require.Nil(t, store.insertedArg.FaviconRGB)
}

func TestAddSkipsFaviconForNonHTML(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	store := &fakeStore{inserted: true, nextID: 4}
	fields := links.PageFields{
		FinalURL:    "https://example.com/report.pdf",
		Title:       "Untitled pdf",
		ContentType: "application/pdf",
		StatusCode:  200,
	}
	svc := newTestService(&fakeFetcher{fields: fields}, resolver, store, nil)

	_, inserted, err := svc.Add(context.Background(), "owner-1", "https://example.com/report.pdf")
	require.NoError(t, err)
	require.True(t, inserted)
	require.Zero(t, resolver.calls)
}

func TestAddStoreFailureWrapsIngestError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{insertErr: errors.New("connection refused")}
	svc := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/p")},
		&fakeResolver{}, store, nil)

	_, _, err := svc.Add(context.Background(), "owner-1", "https://example.com/p")
	var ie *links.IngestError
	require.ErrorAs(t, err, &ie)

	store2 := &fakeStore{existsErr: errors.New("timeout")}
	svc2 := newTestService(&fakeFetcher{fields: htmlFields("https://example.com/p")},
		&fakeResolver{}, store2, nil)
	_, _, err = svc2.Add(context.Background(), "owner-1", "https://example.com/p")
	require.ErrorAs(t, err, &ie)
}

func TestAddRejectsFinalURLWithoutHost(t *testing.T) {
	t.Parallel()

	fields := links.PageFields{FinalURL: "about:blank", HTML: false, ContentType: "text/plain"}
	svc := newTestService(&fakeFetcher{fields: fields}, &fakeResolver{}, &fakeStore{}, nil)

	_, _, err := svc.Add(context.Background(), "owner-1", "about:blank")
	var fe *links.FetchError
	require.ErrorAs(t, err, &fe)
}
