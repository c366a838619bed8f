package pdfgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdfgen/internal/content"
	"pdfgen/internal/domain"
	"pdfgen/internal/infra/chrome"
	"pdfgen/internal/infra/logging"
	"pdfgen/internal/reaper"
	"pdfgen/internal/render"
)

// teardownTimeout bounds closing pages and the browser once a call is done.
const teardownTimeout = 30 * time.Second

// ChromeConfig configures the default Chrome launcher.
type ChromeConfig struct {
	// ExecPath is the Chrome binary. Empty lets chromedp find one.
	ExecPath string
	// UserDataDir is the parent of the temporary per-launch profiles.
	UserDataDir string
	// NavigationTimeout bounds loading content or a URL, including the idle wait.
	NavigationTimeout time.Duration
	// IdleWindow is how long the network must be quiet before the page counts as loaded.
	IdleWindow time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithChrome configures the built-in Chrome launcher. It has no effect with WithLauncher.
func WithChrome(c ChromeConfig) Option {
	return func(g *Generator) {
		g.chrome = c
	}
}

// WithLauncher replaces the browser launcher.
func WithLauncher(l Launcher) Option {
	return func(g *Generator) {
		g.launcher = l
	}
}

// WithRenderer replaces the template renderer. It takes precedence over WithCSSInlining.
func WithRenderer(r Renderer) Option {
	return func(g *Generator) {
		g.renderer = r
	}
}

// WithCSSInlining selects the renderer that inlines <style> rules before compiling.
func WithCSSInlining(enabled bool) Option {
	return func(g *Generator) {
		g.inlineCSS = enabled
	}
}

// WithKillPolicy sets how often and how patiently a lingering browser process is killed.
func WithKillPolicy(attempts int, delay time.Duration) Option {
	return func(g *Generator) {
		g.reaper = reaper.New(attempts, delay)
	}
}

// WithValidation checks every produced PDF with pdfcpu before returning it.
func WithValidation(enabled bool) Option {
	return func(g *Generator) {
		g.validate = enabled
	}
}

// Generator produces PDFs. It holds configuration only and is safe for concurrent use.
type Generator struct {
	chrome    ChromeConfig
	launcher  domain.Launcher
	renderer  domain.Renderer
	inlineCSS bool
	validate  bool
	reaper    *reaper.Reaper
	loader    *content.Loader
}

// New creates a Generator that launches Chrome and renders content strictly.
func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}

	if g.launcher == nil {
		l := chrome.NewLauncher(g.chrome.ExecPath, g.chrome.UserDataDir)
		if g.chrome.NavigationTimeout > 0 {
			l.NavigationTimeout = g.chrome.NavigationTimeout
		}
		if g.chrome.IdleWindow > 0 {
			l.IdleWindow = g.chrome.IdleWindow
		}
		g.launcher = l
	}
	if g.renderer == nil {
		if g.inlineCSS {
			g.renderer = render.NewInlined()
		} else {
			g.renderer = render.NewHandlebars()
		}
	}
	if g.reaper == nil {
		g.reaper = reaper.New(reaper.DefaultAttempts, reaper.DefaultDelay)
	}
	g.loader = content.NewLoader(g.renderer)
	return g
}

// GenerateOne renders a single request to PDF.
func (g *Generator) GenerateOne(ctx context.Context, req Request, opts Options) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	exportOpts, args := opts.Split()

	var out []byte
	err := g.session(ctx, args, func(p domain.Page) error {
		buf, err := g.render(ctx, p, req, exportOpts)
		if err != nil {
			return err
		}
		out = buf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateMany renders files in order on a single page of one browser. Each result carries
// its file unchanged. Any failure discards all results.
func (g *Generator) GenerateMany(ctx context.Context, files []File, opts Options) ([]Result, error) {
	for i, f := range files {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
	}
	if len(files) == 0 {
		return []Result{}, nil
	}
	exportOpts, args := opts.Split()

	results := make([]Result, 0, len(files))
	err := g.session(ctx, args, func(p domain.Page) error {
		for i, f := range files {
			buf, err := g.render(ctx, p, f.Request, exportOpts)
			if err != nil {
				return fmt.Errorf("file %d: %w", i, err)
			}
			results = append(results, Result{File: f, Buffer: buf})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// render loads req into p and exports it.
func (g *Generator) render(ctx context.Context, p domain.Page, req Request, opts ExportOptions) ([]byte, error) {
	if err := g.loader.LoadInto(ctx, p, req); err != nil {
		return nil, err
	}
	buf, err := p.PDF(ctx, opts)
	if err != nil {
		return nil, err
	}
	if g.validate {
		if err := Validate(buf); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrExport, err)
		}
	}
	return buf, nil
}

// session launches a browser, opens one page, runs fn and tears everything down exactly once.
func (g *Generator) session(ctx context.Context, args []string, fn func(domain.Page) error) (err error) {
	browser, err := g.launcher.Launch(ctx, args)
	if err != nil {
		return err
	}
	defer func() {
		err = g.teardown(ctx, browser, err)
	}()

	p, err := browser.NewPage(ctx)
	if err != nil {
		return err
	}
	return fn(p)
}

// teardown closes pages and the browser, then makes sure the process is gone. It runs
// detached from ctx cancellation. A teardown failure is only returned when the call itself
// succeeded.
func (g *Generator) teardown(ctx context.Context, b domain.Browser, callErr error) error {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	pagesErr := reaper.CloseAllPages(tctx, b)
	browserErr := b.Close(tctx)
	g.reaper.KillProcess(b.Process())

	err := errors.Join(pagesErr, browserErr)
	if err == nil {
		return callErr
	}
	if callErr != nil {
		logging.Warn("Browser teardown failed", "error", err, "cause", callErr)
		return callErr
	}
	return err
}
