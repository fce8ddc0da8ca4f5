package receipt

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// PDFRenderer rasterizes PDF receipts with MuPDF so they can travel through
// the same vision pipeline as image uploads
type PDFRenderer struct{}

// NewPDFRenderer creates a PDF renderer
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// RenderFirstPage renders the first page of the PDF at path as PNG bytes
func (r *PDFRenderer) RenderFirstPage(path string) ([]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
