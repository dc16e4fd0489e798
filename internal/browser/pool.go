// Package browser manages a bounded pool of headless Chrome pages
// backed by one shared browser process.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"linkstash/internal/links"
)

// ErrPoolClosed is returned by Acquire once draining has started.
var ErrPoolClosed = errors.New("browser pool closed")

// Config controls pool sizing and teardown behavior.
type Config struct {
	// MaxPages bounds concurrent page checkouts.
	MaxPages int
	// AcquireTimeout bounds how long Acquire waits for a free slot
	// before failing with links.ErrPoolExhausted.
	AcquireTimeout time.Duration
	// IdleTimeout is how long the pool keeps the browser process warm
	// after the last page is released. It restarts lazily on the next
	// Acquire.
	IdleTimeout time.Duration
	UserAgent   string
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Second
	}
	return c
}

// Page is one checked-out browser page. It is owned exclusively by the
// holder until released; its chromedp context is closed on release.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the chromedp context to run page actions against.
func (p *Page) Context() context.Context {
	return p.ctx
}

type browserHandle struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Pool is a bounded pool of browser pages. The shared browser process
// is owned by the pool alone: created lazily on first Acquire, closed
// after IdleTimeout of zero checkouts or when draining finishes.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	slots chan struct{}

	mu        sync.Mutex
	browser   *browserHandle
	inUse     int
	idleTimer *time.Timer
	draining  bool

	inflight sync.WaitGroup

	// Injected so pool behavior is testable without Chrome.
	startBrowser func(cfg Config) (*browserHandle, error)
	newPage      func(browserCtx context.Context) (context.Context, context.CancelFunc, error)
}

// NewPool creates a Pool. The browser process is not started until the
// first Acquire.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:          cfg,
		logger:       logger,
		slots:        make(chan struct{}, cfg.MaxPages),
		startBrowser: startChrome,
		newPage:      newChromePage,
	}
}

// Acquire blocks until a page slot is free, then hands out a fresh page
// bound to its own browsing target. It fails with links.ErrPoolExhausted
// when no slot frees up within the acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*Page, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
	case <-timer.C:
		return nil, links.ErrPoolExhausted
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire page: %w", ctx.Err())
	}

	page, err := p.checkout()
	if err != nil {
		<-p.slots
		return nil, err
	}
	return page, nil
}

func (p *Pool) checkout() (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return nil, ErrPoolClosed
	}
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	if p.browser == nil {
		handle, err := p.startBrowser(p.cfg)
		if err != nil {
			return nil, fmt.Errorf("start browser: %w", err)
		}
		p.browser = handle
		p.logger.Info("browser process started")
	}

	pageCtx, pageCancel, err := p.newPage(p.browser.ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	p.inUse++
	p.inflight.Add(1)
	return &Page{ctx: pageCtx, cancel: pageCancel}, nil
}

// Release closes the page's browsing context and frees its slot. If the
// pool is draining and this was the last open page, the shared browser
// goes down with it.
func (p *Pool) Release(page *Page) {
	if page == nil || page.cancel == nil {
		return
	}
	page.cancel()
	page.cancel = nil

	p.mu.Lock()
	p.inUse--
	switch {
	case p.draining && p.inUse == 0:
		p.closeBrowserLocked()
	case !p.draining && p.inUse == 0:
		p.armIdleTimerLocked()
	}
	p.mu.Unlock()

	p.inflight.Done()
	<-p.slots
}

func (p *Pool) armIdleTimerLocked() {
	if p.browser == nil {
		return
	}
	p.idleTimer = time.AfterFunc(p.cfg.IdleTimeout, p.reapIdleBrowser)
}

func (p *Pool) reapIdleBrowser() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse > 0 || p.draining {
		return
	}
	if p.browser != nil {
		p.logger.Info("closing idle browser process",
			zap.Duration("idle_timeout", p.cfg.IdleTimeout))
		p.closeBrowserLocked()
	}
}

// DrainAndClose stops handing out pages, waits for every in-flight page
// to be released, then closes the browser process. In-flight fetches
// are never force-killed. Safe to call more than once.
func (p *Pool) DrainAndClose(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("drain pool: %w", ctx.Err())
	}

	p.mu.Lock()
	p.closeBrowserLocked()
	p.mu.Unlock()
	return nil
}

// closeBrowserLocked tears down the browser and allocator exactly once;
// callers hold p.mu.
func (p *Pool) closeBrowserLocked() {
	if p.browser == nil {
		return
	}
	p.browser.cancel()
	p.browser.allocCancel()
	p.browser = nil
	p.logger.Info("browser process closed")
}

// InUse reports how many pages are currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

func startChrome(cfg Config) (*browserHandle, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &browserHandle{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

func newChromePage(browserCtx context.Context) (context.Context, context.CancelFunc, error) {
	pageCtx, pageCancel := chromedp.NewContext(browserCtx)
	return pageCtx, pageCancel, nil
}
