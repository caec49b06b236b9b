package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docvault/internal/docvault"
)

// PDFRenderer inspects PDF content using pdfcpu. The library operates on
// files, so each call round-trips the document through a temp directory.
type PDFRenderer struct {
	conf *model.Configuration
}

var _ docvault.PageRenderer = (*PDFRenderer)(nil)

// NewPDFRenderer creates a new PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFRenderer{conf: conf}
}

// PageCount returns the number of pages in the PDF.
func (r *PDFRenderer) PageCount(pdf []byte) (int, error) {
	src, cleanup, err := tempPDF(pdf)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	count, err := api.PageCountFile(src)
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return count, nil
}

// FirstPageImage extracts the raster image embedded in the first page.
// Scanned documents carry each page as a single full-page image; a document
// without one cannot be recognized.
func (r *PDFRenderer) FirstPageImage(pdf []byte) ([]byte, error) {
	src, cleanup, err := tempPDF(pdf)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	imgDir := filepath.Join(filepath.Dir(src), "images")
	if err := os.MkdirAll(imgDir, 0700); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	if err := api.ExtractImagesFile(src, imgDir, []string{"1"}, r.conf); err != nil {
		return nil, fmt.Errorf("extracting page image: %w", err)
	}

	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return nil, fmt.Errorf("reading image directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		img, err := os.ReadFile(filepath.Join(imgDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading extracted image: %w", err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("page 1 contains no embedded image")
}

// tempPDF writes the document to a temp file and returns its path plus a
// cleanup func removing the whole directory.
func tempPDF(pdf []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", "docvault-pdf-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp directory: %w", err)
	}
	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, pdf, 0600); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("writing temp pdf: %w", err)
	}
	return path, func() { os.RemoveAll(dir) }, nil
}
