// Package tesseract provides an ocr.Recognizer backed by libtesseract
// through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

// Engine implements ocr.Recognizer. A new gosseract client is created per
// call, so an Engine can be shared between goroutines.
type Engine struct {
	clientFactory  func() *gosseract.Client
	tessdataPrefix string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTessdataPrefix points Tesseract at a tessdata directory other than
// the compiled-in default.
func WithTessdataPrefix(prefix string) Option {
	return func(e *Engine) { e.tessdataPrefix = prefix }
}

// New constructs a Tesseract-backed engine.
func New(opts ...Option) *Engine {
	e := &Engine{clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Version reports the linked libtesseract version.
func Version() string { return gosseract.Version() }

// Recognize runs Tesseract over the normalized buffer and returns the raw
// text. The call blocks until Tesseract returns; a context that is already
// done is reported before the engine starts.
func (e *Engine) Recognize(ctx context.Context, req ocr.RecognitionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Image == nil {
		return "", fmt.Errorf("no image in request")
	}
	if req.Mode.EngineMode != ocr.DefaultEngineMode {
		// gosseract always initializes with OEM_DEFAULT.
		return "", fmt.Errorf("%w: engine mode %d not supported", ocr.ErrInvalidConfig, req.Mode.EngineMode)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, req.Image); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.DisableOutput(); err != nil {
		return "", fmt.Errorf("disable output: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if codes := req.LanguageCodes(); len(codes) > 0 {
		if err := c.SetLanguage(codes...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(req.Mode.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, nil
}
