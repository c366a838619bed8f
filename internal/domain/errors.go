package domain

import "errors"

// Sentinel errors for the generation pipeline. Components wrap them with the underlying
// cause, so callers can check both with errors.Is.
var (
	// ErrInvalidRequest signals a request that sets neither or both of content and url.
	ErrInvalidRequest = errors.New("invalid generation request")
	// ErrLaunch signals that the browser process could not be started.
	ErrLaunch = errors.New("browser launch failed")
	// ErrTemplate signals a template compile or render failure, including strict lookups.
	ErrTemplate = errors.New("template rendering failed")
	// ErrStyling signals a CSS inlining failure.
	ErrStyling = errors.New("css inlining failed")
	// ErrNavigation signals that a page could not be loaded or never became idle.
	ErrNavigation = errors.New("page load failed")
	// ErrExport signals a PDF export failure.
	ErrExport = errors.New("pdf export failed")
)
