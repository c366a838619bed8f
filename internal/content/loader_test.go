package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfgen/internal/domain"
	"pdfgen/internal/render"
)

type fakePage struct {
	setContent []string
	navigated  []string
	err        error
}

func (p *fakePage) SetContent(_ context.Context, html string) error {
	p.setContent = append(p.setContent, html)
	return p.err
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return p.err
}

func (p *fakePage) PDF(context.Context, domain.ExportOptions) ([]byte, error) {
	return nil, errors.New("not used")
}

func (p *fakePage) Close(context.Context) error { return nil }

type countingRenderer struct {
	calls int
	out   string
	err   error
}

func (r *countingRenderer) Render(source string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if r.out != "" {
		return r.out, nil
	}
	return source, nil
}

func TestLoadInto_ContentIsRenderedAndNeverNavigates(t *testing.T) {
	r := &countingRenderer{out: "<h1>rendered</h1>"}
	p := &fakePage{}

	require.NoError(t, NewLoader(r).LoadInto(context.Background(), p, domain.Request{Content: "<h1>Hi</h1>"}))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []string{"<h1>rendered</h1>"}, p.setContent)
	assert.Empty(t, p.navigated)
}

func TestLoadInto_URLNavigatesAndNeverRenders(t *testing.T) {
	r := &countingRenderer{}
	p := &fakePage{}

	require.NoError(t, NewLoader(r).LoadInto(context.Background(), p, domain.Request{URL: "https://example.com"}))
	assert.Zero(t, r.calls)
	assert.Empty(t, p.setContent)
	assert.Equal(t, []string{"https://example.com"}, p.navigated)
}

func TestLoadInto_TemplateErrorSkipsPage(t *testing.T) {
	p := &fakePage{}
	err := NewLoader(render.NewHandlebars()).LoadInto(context.Background(), p, domain.Request{Content: "<h1>{{title}}</h1>"})
	if !errors.Is(err, domain.ErrTemplate) {
		t.Fatalf("expected ErrTemplate, got %v", err)
	}
	assert.Empty(t, p.setContent)
}

func TestLoadInto_NavigationErrorPropagates(t *testing.T) {
	p := &fakePage{err: domain.ErrNavigation}
	err := NewLoader(&countingRenderer{}).LoadInto(context.Background(), p, domain.Request{URL: "http://unreachable.invalid"})
	if !errors.Is(err, domain.ErrNavigation) {
		t.Fatalf("expected ErrNavigation, got %v", err)
	}
}

func TestLoadInto_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  domain.Request
	}{
		{name: "empty", req: domain.Request{}},
		{name: "both", req: domain.Request{Content: "<p/>", URL: "https://example.com"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePage{}
			err := NewLoader(&countingRenderer{}).LoadInto(context.Background(), p, tc.req)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			assert.Empty(t, p.setContent)
			assert.Empty(t, p.navigated)
		})
	}
}
