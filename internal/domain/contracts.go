package domain

import "context"

// Launcher starts one browser process per call.
type Launcher interface {
	Launch(ctx context.Context, args []string) (Browser, error)
}

// Browser is an exclusively owned browser process and the pages opened through it.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Pages() []Page
	Close(ctx context.Context) error
	// Process returns the OS process handle, or nil when it is unknown.
	Process() Process
}

// Page is a single browser tab.
type Page interface {
	// SetContent replaces the document and waits until the network is idle.
	SetContent(ctx context.Context, html string) error
	// Navigate loads url and waits for the load event and an idle network.
	Navigate(ctx context.Context, url string) error
	// PDF prints the current document.
	PDF(ctx context.Context, opts ExportOptions) ([]byte, error)
	Close(ctx context.Context) error
}

// Process is the handle the reaper uses to force-kill a browser.
type Process interface {
	Pid() int
	// Killed reports whether the process was killed or has already exited.
	Killed() bool
	Kill() error
}

// Renderer turns template source into final HTML.
type Renderer interface {
	Render(source string) (string, error)
}
