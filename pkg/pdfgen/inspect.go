package pdfgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// pdfConfig returns a relaxed pdfcpu configuration that never touches the user's config dir.
func pdfConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Validate checks that pdf is a well-formed PDF document.
func Validate(pdf []byte) error {
	if len(pdf) == 0 {
		return errors.New("empty pdf")
	}
	if err := api.Validate(bytes.NewReader(pdf), pdfConfig()); err != nil {
		return fmt.Errorf("invalid pdf: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in pdf.
func PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), pdfConfig())
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// Merge concatenates the documents in order into a single PDF.
func Merge(pdfs [][]byte) ([]byte, error) {
	if len(pdfs) == 0 {
		return nil, errors.New("nothing to merge")
	}
	if len(pdfs) == 1 {
		return bytes.Clone(pdfs[0]), nil
	}

	readers := make([]io.ReadSeeker, len(pdfs))
	for i, p := range pdfs {
		readers[i] = bytes.NewReader(p)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, pdfConfig()); err != nil {
		return nil, fmt.Errorf("merge pdfs: %w", err)
	}
	return out.Bytes(), nil
}
