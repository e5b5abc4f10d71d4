package ocr

import "bytes"

// Kind classifies an inbound binary payload.
type Kind int

const (
	// KindPageImage is a single raster page (PNG, JPEG, TIFF, ...).
	KindPageImage Kind = iota
	// KindDocument is a multi-page PDF document.
	KindDocument
)

func (k Kind) String() string {
	if k == KindDocument {
		return "document"
	}
	return "page-image"
}

var pdfMagic = []byte("%PDF")

// Detect classifies a payload by its leading bytes. A payload is a document
// iff it starts with the PDF magic signature; everything else is treated as
// a page image and fails later at decode time if it isn't one.
func Detect(payload []byte) Kind {
	if bytes.HasPrefix(payload, pdfMagic) {
		return KindDocument
	}
	return KindPageImage
}
