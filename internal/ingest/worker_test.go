package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkstash/internal/links"
)

// trackingFetcher records the context each fetch ran under.
type trackingFetcher struct {
	mu   sync.Mutex
	ctxs []context.Context
	urls []string
}

func (f *trackingFetcher) Fetch(ctx context.Context, rawURL string) (links.PageFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxs = append(f.ctxs, ctx)
	f.urls = append(f.urls, rawURL)
	return htmlFields("https://example.com/" + rawURL), nil
}

func (f *trackingFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func TestWorkerProcessesQueuedTasks(t *testing.T) {
	t.Parallel()

	fetcher := &trackingFetcher{}
	store := &fakeStore{inserted: true, nextID: 1}
	svc := newTestService(fetcher, &fakeResolver{}, store, nil)
	q := NewQueue(4)
	w := NewWorker(q, svc, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	require.NoError(t, q.Enqueue(context.Background(), Task{Owner: "o", URL: "one"}))
	require.NoError(t, q.Enqueue(context.Background(), Task{Owner: "o", URL: "two"}))

	require.Eventually(t, func() bool {
		return len(fetcher.fetched()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	svc := newTestService(&trackingFetcher{}, &fakeResolver{}, &fakeStore{inserted: true}, nil)
	q := NewQueue(1)
	w := NewWorker(q, svc, time.Minute, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background())
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on queue close")
	}
}

// blockingFetcher parks inside Fetch until released so the test can
// observe an in-flight task.
type blockingFetcher struct {
	started chan context.Context
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, _ string) (links.PageFields, error) {
	f.started <- ctx
	<-f.release
	return htmlFields("https://example.com/x"), nil
}

func TestWorkerDetachesTaskFromRunContext(t *testing.T) {
	t.Parallel()

	fetcher := &blockingFetcher{
		started: make(chan context.Context, 1),
		release: make(chan struct{}),
	}
	svc := newTestService(fetcher, &fakeResolver{}, &fakeStore{inserted: true}, nil)
	q := NewQueue(1)
	w := NewWorker(q, svc, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, q.Enqueue(context.Background(), Task{Owner: "o", URL: "x"}))
	taskCtx := <-fetcher.started

	// Canceling the run context must not cancel the in-flight task: it
	// derives from Background so fire-and-forget adds survive shutdown.
	cancel()
	require.NoError(t, taskCtx.Err())
	close(fetcher.release)
}
