package ocr

import (
	"context"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
)

// Extractor crops declared regions out of a page image and runs the
// recognizer on each crop.
type Extractor struct {
	rec         Recognizer
	defaultLang string
	logger      *slog.Logger
}

// NewExtractor creates a region extractor. defaultLang is used when a call
// supplies no language code.
func NewExtractor(rec Recognizer, defaultLang string, logger *slog.Logger) *Extractor {
	if defaultLang == "" {
		defaultLang = DefaultLanguage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		rec:         rec,
		defaultLang: defaultLang,
		logger:      logger.With("component", "extractor"),
	}
}

// ExtractRegions recognizes text in each declared region of the page image
// and returns a field-id to text map. Fields are processed in the given
// order; each field writes its own key so order never changes the result.
//
// A region with non-positive width or height is recorded as "" without
// invoking the recognizer. A recognition failure on one field is logged and
// recorded as ""; remaining fields are unaffected. The returned map always
// holds one entry per field with a non-empty id.
func (e *Extractor) ExtractRegions(ctx context.Context, img image.Image, fields []FieldDef, lang string) map[string]string {
	if lang == "" {
		lang = e.defaultLang
	}

	results := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			continue
		}
		if !f.Valid() {
			e.logger.Warn("invalid region, skipping",
				"field", f.ID, "x1", f.X1, "y1", f.Y1, "x2", f.X2, "y2", f.Y2)
			results[f.ID] = ""
			continue
		}

		crop := imaging.Crop(img, image.Rect(int(f.X1), int(f.Y1), int(f.X2), int(f.Y2)))
		text, err := e.rec.Recognize(ctx, crop, lang)
		if err != nil {
			e.logger.Error("field recognition failed", "field", f.ID, "error", err)
			results[f.ID] = ""
			continue
		}
		results[f.ID] = strings.TrimSpace(text)
	}
	return results
}
