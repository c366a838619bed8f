package chrome

import (
	"github.com/chromedp/cdproto/page"

	"pdfgen/internal/domain"
)

// printParams maps export options onto Page.printToPDF. Lengths are converted to inches.
func printParams(opts domain.ExportOptions) (*page.PrintToPDFParams, error) {
	paper, err := opts.Paper()
	if err != nil {
		return nil, err
	}
	margins, err := opts.Margins()
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p := page.PrintToPDF().
		WithPaperWidth(paper.Width).
		WithPaperHeight(paper.Height).
		WithMarginTop(margins[0]).
		WithMarginRight(margins[1]).
		WithMarginBottom(margins[2]).
		WithMarginLeft(margins[3]).
		WithLandscape(opts.Landscape).
		WithPrintBackground(opts.PrintBackground).
		WithPreferCSSPageSize(opts.PreferCSSPageSize)

	if opts.Scale != 0 {
		p = p.WithScale(opts.Scale)
	}
	if opts.PageRanges != "" {
		p = p.WithPageRanges(opts.PageRanges)
	}
	if opts.DisplayHeaderFooter {
		p = p.WithDisplayHeaderFooter(true)
		// Empty templates leave Chrome's default date and title lines in place.
		if opts.HeaderTemplate != "" {
			p = p.WithHeaderTemplate(opts.HeaderTemplate)
		}
		if opts.FooterTemplate != "" {
			p = p.WithFooterTemplate(opts.FooterTemplate)
		}
	}
	return p, nil
}
