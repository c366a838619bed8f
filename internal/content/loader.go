// Package content loads a generation request into a browser page.
package content

import (
	"context"

	"pdfgen/internal/domain"
	"pdfgen/internal/infra/logging"
)

// Loader renders template content or navigates to a URL.
type Loader struct {
	Renderer domain.Renderer
}

// NewLoader returns a Loader that renders content with r.
func NewLoader(r domain.Renderer) *Loader {
	return &Loader{Renderer: r}
}

// LoadInto makes req the current document of p. Content is rendered and set directly and
// never navigates; a URL is navigated to and never rendered. Both wait for an idle network.
func (l *Loader) LoadInto(ctx context.Context, p domain.Page, req domain.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if req.Content != "" {
		html, err := l.Renderer.Render(req.Content)
		if err != nil {
			return err
		}
		logging.Debug("Setting page content", "bytes", len(html))
		return p.SetContent(ctx, html)
	}

	logging.Debug("Navigating page", "url", req.URL)
	return p.Navigate(ctx, req.URL)
}
