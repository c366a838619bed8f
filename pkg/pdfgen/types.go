package pdfgen

import (
	"pdfgen/internal/domain"
	"pdfgen/internal/infra/chrome"
)

type (
	Request       = domain.Request
	File          = domain.File
	Result        = domain.Result
	Options       = domain.Options
	ExportOptions = domain.ExportOptions
	Margin        = domain.Margin

	Launcher = domain.Launcher
	Browser  = domain.Browser
	Page     = domain.Page
	Process  = domain.Process
	Renderer = domain.Renderer
)

var (
	ErrInvalidRequest = domain.ErrInvalidRequest
	ErrLaunch         = domain.ErrLaunch
	ErrTemplate       = domain.ErrTemplate
	ErrStyling        = domain.ErrStyling
	ErrNavigation     = domain.ErrNavigation
	ErrExport         = domain.ErrExport
)

// DefaultLaunchArgs returns the browser arguments used when Options.LaunchArgs is empty.
func DefaultLaunchArgs() []string {
	return chrome.DefaultLaunchArgs()
}
