// Package pdfgen renders HTML templates or web pages to PDF with headless Chrome.
//
// # Quick Start
//
//	gen := pdfgen.New()
//	pdf, err := gen.GenerateOne(ctx, pdfgen.Request{Content: "<h1>Hi</h1>"}, pdfgen.Options{
//	    ExportOptions: pdfgen.ExportOptions{Format: "A4"},
//	})
//
// # Sessions
//
// Every call launches its own browser process, opens one page and tears the session down
// before returning: pages are closed, the browser is closed and the process is killed if it
// is still alive. Sessions are never reused, so a Generator is safe for concurrent use.
//
// GenerateMany reuses the single page of its session for all files, one after the other,
// and returns results in input order. One failing file fails the whole batch.
//
// # Templates
//
// Content is compiled as a Handlebars template in strict mode, with the template source
// itself as the data context. Markup without expressions passes through unchanged; any
// variable lookup fails with ErrTemplate. WithCSSInlining moves <style> rules into style
// attributes before compiling.
//
// # Launch arguments
//
// Options.LaunchArgs replaces DefaultLaunchArgs entirely when non-empty. It only reaches the
// launcher; the PDF export never sees it.
package pdfgen
