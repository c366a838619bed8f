// Package render turns template source into the HTML that gets loaded into a page.
//
// Both renderers compile the source against itself as the data context. A real template
// with data dependencies therefore fails under strict lookups; plain HTML passes through.
package render

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/raymond"
	"github.com/aymerick/raymond/parser"
	"github.com/vanng822/go-premailer/premailer"

	"pdfgen/internal/domain"
	"pdfgen/internal/infra/logging"
)

// Compile-time interface checks
var (
	_ domain.Renderer = (*Handlebars)(nil)
	_ domain.Renderer = (*Inlined)(nil)
)

// Handlebars renders templates with raymond.
type Handlebars struct {
	// Strict fails on lookups that do not resolve against the data context.
	Strict bool
	// Helpers are registered on every compiled template.
	Helpers map[string]any
}

// NewHandlebars returns a strict renderer without custom helpers.
func NewHandlebars() *Handlebars {
	return &Handlebars{Strict: true}
}

// Compile renders source against data.
func (h *Handlebars) Compile(source string, data any) (string, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTemplate, err)
	}

	if h.Strict {
		names := make(map[string]bool, len(h.Helpers))
		for name := range h.Helpers {
			names[name] = true
		}
		check := &strictChecker{data: reflect.ValueOf(data), helpers: names}
		if err := check.program(program); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrTemplate, err)
		}
	}

	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTemplate, err)
	}
	if len(h.Helpers) > 0 {
		tpl.RegisterHelpers(h.Helpers)
	}

	out, err := tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTemplate, err)
	}
	return out, nil
}

// Render compiles source using source itself as the data context.
func (h *Handlebars) Render(source string) (string, error) {
	logging.Debug("Compiling template", "bytes", len(source), "strict", h.Strict)
	return h.Compile(source, source)
}

// Inlined moves <style> rules into style attributes before rendering the template.
// Linked stylesheets are left for the browser to load.
type Inlined struct {
	Template *Handlebars
	Options  *premailer.Options
}

// NewInlined returns a strict renderer with premailer's default inlining options.
func NewInlined() *Inlined {
	return &Inlined{Template: NewHandlebars(), Options: premailer.NewOptions()}
}

// Inline returns html with embedded CSS rules applied as inline styles.
func (r *Inlined) Inline(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStyling, err)
	}

	opts := r.Options
	if opts == nil {
		opts = premailer.NewOptions()
	}
	out, err := premailer.NewPremailer(doc, opts).Transform()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStyling, err)
	}
	return out, nil
}

// Render inlines CSS, then compiles the result against itself.
func (r *Inlined) Render(source string) (string, error) {
	inlined, err := r.Inline(source)
	if err != nil {
		return "", err
	}

	tpl := r.Template
	if tpl == nil {
		tpl = NewHandlebars()
	}
	logging.Debug("Compiling inlined template", "bytes", len(inlined), "strict", tpl.Strict)
	return tpl.Compile(inlined, inlined)
}
