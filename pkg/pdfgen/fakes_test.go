package pdfgen

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type fakeProcess struct {
	mu      sync.Mutex
	pid     int
	killed  bool
	signals int
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals++
	p.killed = true
	return nil
}

type fakePage struct {
	mu         sync.Mutex
	doc        string
	setContent []string
	navigated  []string
	exported   []ExportOptions
	closes     int
	// failNavigate fails the navigation to this URL.
	failNavigate string
	pdfErr       error
	pdfBytes     []byte
}

func (p *fakePage) SetContent(ctx context.Context, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setContent = append(p.setContent, html)
	p.doc = html
	return nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	if url == p.failNavigate {
		return fmt.Errorf("%w: net::ERR_NAME_NOT_RESOLVED", ErrNavigation)
	}
	p.doc = url
	return nil
}

func (p *fakePage) PDF(ctx context.Context, opts ExportOptions) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exported = append(p.exported, opts)
	if p.pdfErr != nil {
		return nil, p.pdfErr
	}
	if p.pdfBytes != nil {
		return p.pdfBytes, nil
	}
	return []byte("%PDF-fake " + p.doc), nil
}

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

type fakeBrowser struct {
	mu           sync.Mutex
	page         *fakePage
	pages        []Page
	proc         *fakeProcess
	closes       int
	closeCtxErr  error
	closeErr     error
	newPageErr   error
	newPageCalls int
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newPageCalls++
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.pages = append(b.pages, b.page)
	return b.page, nil
}

func (b *fakeBrowser) Pages() []Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Page(nil), b.pages...)
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	b.closeCtxErr = ctx.Err()
	return b.closeErr
}

func (b *fakeBrowser) Process() Process {
	if b.proc == nil {
		return nil
	}
	return b.proc
}

type fakeLauncher struct {
	mu        sync.Mutex
	args      [][]string
	launchErr error
	browsers  []*fakeBrowser
	// setup customizes each new browser.
	setup func(*fakeBrowser)
}

func (l *fakeLauncher) Launch(ctx context.Context, args []string) (Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.args = append(l.args, args)
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	b := &fakeBrowser{
		page: &fakePage{},
		proc: &fakeProcess{pid: 1000 + len(l.browsers)},
	}
	if l.setup != nil {
		l.setup(b)
	}
	l.browsers = append(l.browsers, b)
	return b, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.args)
}

type recordingRenderer struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRenderer) Render(source string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, source)
	return source, nil
}

// minimalPDF builds a valid PDF with the given number of empty Letter pages.
func minimalPDF(pages int) []byte {
	var objs []string
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	)
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return []byte(b.String())
}
