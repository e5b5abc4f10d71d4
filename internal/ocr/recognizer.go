package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer converts an image to plain text. Implementations must be safe
// for concurrent use; the worker pool invokes them from multiple goroutines.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, lang string) (string, error)
}

// DefaultLanguage is the language code used when a call supplies none and
// no default is configured.
const DefaultLanguage = "eng"

// TesseractConfig configures the Tesseract recognizer binding.
type TesseractConfig struct {
	// TessdataPrefix points at the tessdata directory. Empty uses the
	// system default.
	TessdataPrefix string
	// Languages is the allow-list of accepted language codes.
	// Empty means only DefaultLanguage.
	Languages []string
}

// Tesseract recognizes text through the gosseract bindings. Each call gets
// its own client; gosseract clients are not safe to share across goroutines.
type Tesseract struct {
	tessdataPrefix string
	languages      map[string]struct{}
}

// NewTesseract creates a Tesseract recognizer.
func NewTesseract(cfg TesseractConfig) *Tesseract {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{DefaultLanguage}
	}
	allowed := make(map[string]struct{}, len(langs))
	for _, l := range langs {
		allowed[l] = struct{}{}
	}
	return &Tesseract{
		tessdataPrefix: cfg.TessdataPrefix,
		languages:      allowed,
	}
}

// Supports reports whether the language code is on the configured allow-list.
func (t *Tesseract) Supports(lang string) bool {
	_, ok := t.languages[lang]
	return ok
}

// Recognize runs OCR on the image with the given language code.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !t.Supports(lang) {
		return "", &RecognitionError{Err: fmt.Errorf("unsupported language: %q", lang)}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", &RecognitionError{Err: fmt.Errorf("encode image: %w", err)}
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return "", &RecognitionError{Err: fmt.Errorf("set tessdata prefix: %w", err)}
		}
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", &RecognitionError{Err: fmt.Errorf("set language: %w", err)}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", &RecognitionError{Err: fmt.Errorf("set image: %w", err)}
	}

	text, err := client.Text()
	if err != nil {
		return "", &RecognitionError{Err: err}
	}
	return text, nil
}

// Version reports the linked Tesseract version.
func (t *Tesseract) Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
