package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64
	Height float64
}

// PaperFormats maps the accepted format names (lower-cased) to their size.
var PaperFormats = map[string]PaperSize{
	"letter":  {Width: 8.5, Height: 11},
	"legal":   {Width: 8.5, Height: 14},
	"tabloid": {Width: 11, Height: 17},
	"ledger":  {Width: 17, Height: 11},
	"a0":      {Width: 33.1, Height: 46.8},
	"a1":      {Width: 23.4, Height: 33.1},
	"a2":      {Width: 16.54, Height: 23.4},
	"a3":      {Width: 11.7, Height: 16.54},
	"a4":      {Width: 8.27, Height: 11.7},
	"a5":      {Width: 5.83, Height: 8.27},
	"a6":      {Width: 4.13, Height: 5.83},
}

// DefaultFormat is used when neither a format nor explicit dimensions are given.
const DefaultFormat = "letter"

// unitsPerInch converts CSS length units to inches.
var unitsPerInch = map[string]float64{
	"px": 96,
	"in": 1,
	"cm": 2.54,
	"mm": 25.4,
}

// Margin holds CSS lengths for each page edge.
type Margin struct {
	Top    string `json:"top,omitempty"`
	Right  string `json:"right,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
}

// ExportOptions are forwarded to the browser's print-to-PDF call as-is.
type ExportOptions struct {
	Format              string  `json:"format,omitempty"`
	Width               string  `json:"width,omitempty"`
	Height              string  `json:"height,omitempty"`
	Landscape           bool    `json:"landscape,omitempty"`
	PrintBackground     bool    `json:"printBackground,omitempty"`
	Scale               float64 `json:"scale,omitempty"`
	Margin              Margin  `json:"margin,omitzero"`
	PageRanges          string  `json:"pageRanges,omitempty"`
	DisplayHeaderFooter bool    `json:"displayHeaderFooter,omitempty"`
	HeaderTemplate      string  `json:"headerTemplate,omitempty"`
	FooterTemplate      string  `json:"footerTemplate,omitempty"`
	PreferCSSPageSize   bool    `json:"preferCSSPageSize,omitempty"`
}

// Options is what callers pass in: export options plus the launch-only browser arguments.
type Options struct {
	ExportOptions
	LaunchArgs []string `json:"launchArgs,omitempty"`
}

// Split separates launch arguments from the export options without touching o.
func (o Options) Split() (ExportOptions, []string) {
	var args []string
	if len(o.LaunchArgs) > 0 {
		args = append([]string(nil), o.LaunchArgs...)
	}
	return o.ExportOptions, args
}

// Paper resolves the page size in inches. Explicit width and height win over the format.
func (o ExportOptions) Paper() (PaperSize, error) {
	if o.Width != "" || o.Height != "" {
		if o.Width == "" || o.Height == "" {
			return PaperSize{}, fmt.Errorf("width and height must be set together")
		}
		w, err := ParseLength(o.Width)
		if err != nil {
			return PaperSize{}, fmt.Errorf("width: %w", err)
		}
		h, err := ParseLength(o.Height)
		if err != nil {
			return PaperSize{}, fmt.Errorf("height: %w", err)
		}
		return PaperSize{Width: w, Height: h}, nil
	}

	name := strings.ToLower(strings.TrimSpace(o.Format))
	if name == "" {
		name = DefaultFormat
	}
	size, ok := PaperFormats[name]
	if !ok {
		return PaperSize{}, fmt.Errorf("unknown paper format %q", o.Format)
	}
	return size, nil
}

// Margins resolves the four margins in inches, in top, right, bottom, left order.
func (o ExportOptions) Margins() ([4]float64, error) {
	var out [4]float64
	for i, v := range []string{o.Margin.Top, o.Margin.Right, o.Margin.Bottom, o.Margin.Left} {
		if v == "" {
			continue
		}
		in, err := ParseLength(v)
		if err != nil {
			return out, fmt.Errorf("margin: %w", err)
		}
		out[i] = in
	}
	return out, nil
}

// ParseLength converts a CSS length ("10px", "1.5in", "2cm", "20mm" or a bare pixel
// count) to inches.
func ParseLength(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty length")
	}
	unit := "px"
	num := s
	if len(s) > 2 {
		if _, ok := unitsPerInch[s[len(s)-2:]]; ok {
			unit = s[len(s)-2:]
			num = strings.TrimSpace(s[:len(s)-2])
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative length %q", s)
	}
	return v / unitsPerInch[unit], nil
}

// Validate checks that the paper size, margins and scale can be resolved.
func (o ExportOptions) Validate() error {
	if _, err := o.Paper(); err != nil {
		return err
	}
	if _, err := o.Margins(); err != nil {
		return err
	}
	return o.checkScale()
}

func (o ExportOptions) checkScale() error {
	if o.Scale != 0 && (o.Scale < 0.1 || o.Scale > 2) {
		return fmt.Errorf("scale must be between 0.1 and 2, got %v", o.Scale)
	}
	return nil
}
