package chrome

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pdfgen/internal/domain"
	"pdfgen/internal/infra/logging"
)

// Browser is one Chrome process and the tabs opened through it.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	profileDir  string
	proc        *process
	navTimeout  time.Duration
	idleWindow  time.Duration

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

// NewPage opens a tab with network tracking enabled.
func (b *Browser) NewPage(ctx context.Context) (domain.Page, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: browser is closed", domain.ErrLaunch)
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	p := &Page{
		browser:    b,
		ctx:        tabCtx,
		cancel:     tabCancel,
		idle:       newIdleWatcher(),
		navTimeout: b.navTimeout,
		idleWindow: b.idleWindow,
	}
	chromedp.ListenTarget(tabCtx, p.idle.handle)

	// The first Run creates the target and binds it to the context it runs on, so it must
	// run on tabCtx itself rather than on a derived context.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, network.Enable())
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("%w: open page: %w", domain.ErrLaunch, callerErr(ctx, err))
	}

	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// Pages returns the tabs that are still open.
func (b *Browser) Pages() []domain.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Page, 0, len(b.pages))
	for _, p := range b.pages {
		out = append(out, p)
	}
	return out
}

// Process returns the browser's OS process, or nil if chromedp did not expose one.
func (b *Browser) Process() domain.Process {
	if b.proc == nil {
		return nil
	}
	return b.proc
}

// Close shuts the browser down gracefully, then releases the allocator and the profile
// directory. Calling it again is a no-op.
func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.pages = nil
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(b.ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	b.cancel()
	b.allocCancel()
	if rmErr := os.RemoveAll(b.profileDir); rmErr != nil {
		logging.Warn("Failed to remove chrome profile dir", "dir", b.profileDir, "error", rmErr)
	}
	logging.Debug("Browser closed", "pid", b.pid())
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (b *Browser) pid() int {
	if b.proc == nil {
		return 0
	}
	return b.proc.Pid()
}

func (b *Browser) forget(p *Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, open := range b.pages {
		if open == p {
			b.pages = append(b.pages[:i], b.pages[i+1:]...)
			return
		}
	}
}

// Page is a single Chrome tab.
type Page struct {
	browser    *Browser
	ctx        context.Context
	cancel     context.CancelFunc
	idle       *idleWatcher
	navTimeout time.Duration
	idleWindow time.Duration

	closeOnce sync.Once
	closeErr  error
}

// SetContent replaces the document with html and waits for the network to go idle.
func (p *Page) SetContent(ctx context.Context, html string) error {
	p.idle.reset()
	err := p.run(ctx, p.navTimeout,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		p.waitIdle(),
	)
	if err != nil {
		return fmt.Errorf("%w: set content: %w", domain.ErrNavigation, err)
	}
	return nil
}

// Navigate loads url, which waits for the load event, then for the network to go idle.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.idle.reset()
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url), p.waitIdle()); err != nil {
		return fmt.Errorf("%w: navigate %s: %w", domain.ErrNavigation, url, err)
	}
	return nil
}

// PDF prints the current document. The returned slice is owned by the caller.
func (p *Page) PDF(ctx context.Context, opts domain.ExportOptions) ([]byte, error) {
	params, err := printParams(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExport, err)
	}

	var buf []byte
	err = p.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		out, _, err := params.Do(ctx)
		buf = out
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExport, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty output", domain.ErrExport)
	}
	return bytes.Clone(buf), nil
}

// Close closes the tab. Calling it again returns the first result.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(p.ctx) }()
		select {
		case p.closeErr = <-done:
		case <-ctx.Done():
			p.closeErr = ctx.Err()
		}
		p.cancel()
		p.browser.forget(p)
		if p.closeErr != nil {
			p.closeErr = fmt.Errorf("close page: %w", p.closeErr)
		}
	})
	return p.closeErr
}

func (p *Page) waitIdle() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return p.idle.wait(ctx, p.idleWindow)
	})
}

// run executes actions on the tab. Cancelling ctx aborts them; timeout > 0 bounds them.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if IsSessionInterrupted(err) && ctx.Err() == nil && runCtx.Err() == nil {
		logging.Warn("Chrome session interrupted", "pid", p.browser.pid(), "error", err)
	}
	return callerErr(ctx, err)
}
