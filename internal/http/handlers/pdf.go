// Package handlers implements the PDF routes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"pdfgen/internal/config"
	"pdfgen/internal/infra/logging"
	"pdfgen/pkg/pdfgen"
)

// DefaultFilename is sent when the client does not name the document.
const DefaultFilename = "output.pdf"

// HeaderPageCount carries the number of pages of a returned PDF.
const HeaderPageCount = "X-PDF-Pages"

var filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Generator renders documents. *pdfgen.Generator satisfies it.
type Generator interface {
	GenerateOne(ctx context.Context, req pdfgen.Request, opts pdfgen.Options) ([]byte, error)
	GenerateMany(ctx context.Context, files []pdfgen.File, opts pdfgen.Options) ([]pdfgen.Result, error)
}

// PDFHandler serves the conversion routes.
type PDFHandler struct {
	gen   Generator
	cfg   config.Config
	cache *pdfCache
}

// NewPDFHandler creates a handler. rdb may be nil; the PDF cache is then disabled.
func NewPDFHandler(gen Generator, cfg config.Config, rdb *redis.Client) *PDFHandler {
	h := &PDFHandler{gen: gen, cfg: cfg}
	if rdb != nil && cfg.Redis.PDFCacheEnabled {
		h.cache = &pdfCache{rdb: rdb, ttl: cfg.Redis.PDFCacheTTL}
	}
	return h
}

type pdfBody struct {
	File     pdfgen.File    `json:"file"`
	Options  pdfgen.Options `json:"options"`
	Filename string         `json:"filename"`
}

type batchBody struct {
	Files   []pdfgen.File  `json:"files"`
	Options pdfgen.Options `json:"options"`
}

// HandleConversion renders the file in a JSON body to a PDF.
func (h *PDFHandler) HandleConversion(c *fiber.Ctx) error {
	var body pdfBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	filename, err := parseFilename(body.Filename)
	if err != nil {
		return err
	}
	if err := h.checkFile(body.File); err != nil {
		return err
	}
	opts, err := h.checkOptions(body.Options)
	if err != nil {
		return err
	}
	return h.single(c, body.File.Request, opts, filename)
}

// HandleURLConversion renders the page at ?url= to a PDF.
func (h *PDFHandler) HandleURLConversion(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	if rawURL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid URL: missing")
	}
	parsed, err := neturl.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid URL: must be HTTP or HTTPS")
	}
	filename, err := parseFilename(c.Query("filename"))
	if err != nil {
		return err
	}

	var opts pdfgen.Options
	opts.Format = c.Query("format")
	if opts.Landscape, err = queryBool(c, "landscape"); err != nil {
		return err
	}
	if opts.PrintBackground, err = queryBool(c, "print_background"); err != nil {
		return err
	}
	if m := c.Query("margin"); m != "" {
		opts.Margin = pdfgen.Margin{Top: m, Right: m, Bottom: m, Left: m}
	}
	if opts, err = h.checkOptions(opts); err != nil {
		return err
	}
	return h.single(c, pdfgen.Request{URL: rawURL}, opts, filename)
}

// HandleBatch renders every file in order. With ?merge=true the PDFs are concatenated
// into one document, otherwise each file comes back with its base64 "buffer".
func (h *PDFHandler) HandleBatch(c *fiber.Ctx) error {
	var body batchBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	if len(body.Files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files must not be empty")
	}
	if limit := h.cfg.Limits.MaxBatchFiles; limit > 0 && len(body.Files) > limit {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d files per batch", limit))
	}
	for i, f := range body.Files {
		if err := h.checkFile(f); err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fiber.NewError(fe.Code, fmt.Sprintf("file %d: %s", i, fe.Message))
			}
			return err
		}
	}
	opts, err := h.checkOptions(body.Options)
	if err != nil {
		return err
	}
	merge := c.QueryBool("merge", false)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	results, err := h.gen.GenerateMany(ctx, body.Files, opts)
	if err != nil {
		return generationError(ctx, err)
	}

	total := 0
	for _, r := range results {
		total += len(r.Buffer)
	}
	if err := h.checkSize(total); err != nil {
		return err
	}
	logging.Info("PDF batch generated", "files", len(results), "bytes", total, "merge", merge, "request_id", requestID(c))

	if !merge {
		return c.JSON(results)
	}
	buffers := make([][]byte, len(results))
	for i, r := range results {
		buffers[i] = r.Buffer
	}
	merged, err := pdfgen.Merge(buffers)
	if err != nil {
		logging.Error("PDF merge failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "PDF merge failed")
	}
	return sendPDF(c, merged, DefaultFilename)
}

// single renders one request, going through the PDF cache when it is enabled.
func (h *PDFHandler) single(c *fiber.Ctx, req pdfgen.Request, opts pdfgen.Options, filename string) error {
	var key string
	if h.cache != nil {
		key = cacheKey(req, opts)
		if cached, ok := h.cache.get(c.UserContext(), key); ok {
			return sendPDF(c, cached, filename)
		}
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	buf, err := h.gen.GenerateOne(ctx, req, opts)
	if err != nil {
		return generationError(ctx, err)
	}
	if err := h.checkSize(len(buf)); err != nil {
		return err
	}
	if h.cache != nil {
		h.cache.set(c.UserContext(), key, buf)
	}

	logging.Info("PDF generated", "filename", filename, "bytes", len(buf), "request_id", requestID(c))
	return sendPDF(c, buf, filename)
}

func (h *PDFHandler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if t := h.cfg.PDF.RequestTimeout; t > 0 {
		return context.WithTimeout(c.UserContext(), t)
	}
	return context.WithCancel(c.UserContext())
}

func (h *PDFHandler) checkFile(f pdfgen.File) error {
	if err := f.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if limit := h.cfg.Limits.MaxContentBytes; limit > 0 && len(f.Content) > limit {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("content exceeds %d bytes", limit))
	}
	if f.URL != "" {
		parsed, err := neturl.ParseRequestURI(f.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid URL: must be HTTP or HTTPS")
		}
	}
	return nil
}

// checkOptions applies the configured default format and rejects options the browser
// could not print with.
func (h *PDFHandler) checkOptions(opts pdfgen.Options) (pdfgen.Options, error) {
	if len(opts.LaunchArgs) > 0 && !h.cfg.PDF.AllowClientLaunchArgs {
		return opts, fiber.NewError(fiber.StatusBadRequest, "launchArgs are not allowed")
	}
	if opts.Format == "" && opts.Width == "" && opts.Height == "" {
		opts.Format = h.cfg.PDF.DefaultFormat
	}
	if err := opts.ExportOptions.Validate(); err != nil {
		return opts, fiber.NewError(fiber.StatusBadRequest, "Invalid options: "+err.Error())
	}
	return opts, nil
}

func (h *PDFHandler) checkSize(n int) error {
	if limit := h.cfg.Limits.MaxPDFBytes; limit > 0 && n > limit {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "PDF exceeds allowed size")
	}
	return nil
}

// generationError maps a generation failure to an HTTP error.
func generationError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logging.Error("PDF generation timeout", "error", err)
		return fiber.NewError(fiber.StatusRequestTimeout, "PDF rendering took too long")
	case errors.Is(err, pdfgen.ErrInvalidRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, pdfgen.ErrTemplate), errors.Is(err, pdfgen.ErrStyling):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pdfgen.ErrNavigation):
		logging.Warn("Page load failed", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, pdfgen.ErrLaunch):
		logging.Error("Browser launch failed", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Browser unavailable")
	}
	logging.Error("PDF generation failed", "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "PDF generation failed")
}

func parseFilename(name string) (string, error) {
	if name == "" {
		return DefaultFilename, nil
	}
	if !strings.HasSuffix(name, ".pdf") {
		return "", fiber.NewError(fiber.StatusBadRequest, "Filename must end with .pdf")
	}
	if !filenamePattern.MatchString(name) {
		return "", fiber.NewError(fiber.StatusBadRequest, "Filename contains invalid characters")
	}
	return name, nil
}

func queryBool(c *fiber.Ctx, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid %s: must be a boolean", key))
	}
	return b, nil
}

func sendPDF(c *fiber.Ctx, buf []byte, filename string) error {
	if n, err := pdfgen.PageCount(buf); err == nil {
		c.Set(HeaderPageCount, strconv.Itoa(n))
	} else {
		logging.Warn("Could not count PDF pages", "error", err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Send(buf)
}

func requestID(c *fiber.Ctx) string {
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
