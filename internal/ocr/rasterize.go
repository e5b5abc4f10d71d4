package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DefaultDPI is the rendering resolution used when none is configured.
// Higher values improve OCR accuracy at the cost of render time and memory.
const DefaultDPI = 300

// Rasterizer renders a document payload into page images, in document order
// starting at page 1. A payload that cannot be parsed or rendered fails the
// whole call with a DecodeError; partial page sets are never returned.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc []byte) ([]image.Image, error)
}

// Poppler rasterizes documents via the pdftoppm binary (poppler-utils).
// pdfcpu validates the document and supplies the page count before any
// rendering starts.
type Poppler struct {
	// DPI is the rendering resolution. Zero uses DefaultDPI.
	DPI    int
	Logger *slog.Logger
}

func (r *Poppler) dpi() int {
	if r.DPI > 0 {
		return r.DPI
	}
	return DefaultDPI
}

func (r *Poppler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Rasterize renders every page of the document to an image.
func (r *Poppler) Rasterize(ctx context.Context, doc []byte) ([]image.Image, error) {
	pageCount, err := api.PageCount(bytes.NewReader(doc), nil)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("parse document: %w", err)}
	}
	if pageCount < 1 {
		return nil, &DecodeError{Err: fmt.Errorf("document has no pages")}
	}

	// pdftoppm reads from a file, not stdin with page selection.
	tmpDir, err := os.MkdirTemp("", "formscan-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	docPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(docPath, doc, 0o600); err != nil {
		return nil, fmt.Errorf("write temp document: %w", err)
	}

	r.logger().Debug("rasterizing document", "pages", pageCount, "dpi", r.dpi())

	// Render pages concurrently under a CPU-bounded semaphore. The result
	// slice is indexed by page so the returned order is document order
	// regardless of completion order.
	type result struct {
		page int
		img  image.Image
		err  error
	}

	imgs := make([]image.Image, pageCount)
	results := make(chan result, pageCount)
	sem := make(chan struct{}, runtime.NumCPU())

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(page int) {
			defer func() { <-sem }() // release

			img, err := r.renderPage(ctx, docPath, tmpDir, page)
			results <- result{page: page, img: img, err: err}
		}(page)
	}

	for i := 0; i < pageCount; i++ {
		res := <-results
		if res.err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("render page %d: %w", res.page, res.err)}
		}
		imgs[res.page-1] = res.img
	}

	return imgs, nil
}

// renderPage renders one page with pdftoppm and decodes the resulting PNG.
func (r *Poppler) renderPage(ctx context.Context, docPath, tmpDir string, page int) (image.Image, error) {
	outputPrefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", page))
	pageStr := fmt.Sprintf("%d", page)

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", r.dpi()),
		"-singlefile",
		docPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates <prefix>.png
	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}
