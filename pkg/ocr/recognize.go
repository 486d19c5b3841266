package ocr

import (
	"context"
	"errors"
	"image"
)

// RecognitionRequest is everything a Recognizer receives for one image.
type RecognitionRequest struct {
	Image     *image.Gray
	Languages []Language
	Mode      EngineMode
}

// LanguageCodes returns the engine codes of the request languages in order.
func (r RecognitionRequest) LanguageCodes() []string {
	codes := make([]string, len(r.Languages))
	for i, l := range r.Languages {
		codes[i] = l.Code
	}
	return codes
}

// Recognizer is the boundary to a text-recognition engine. Recognize
// returns the raw, untrimmed text, which may be empty. Any failure must be
// returned as an error, never as empty text.
type Recognizer interface {
	Recognize(ctx context.Context, req RecognitionRequest) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, req RecognitionRequest) (string, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, req RecognitionRequest) (string, error) {
	return f(ctx, req)
}

// namer is implemented by engines that report a name for error messages.
type namer interface {
	Name() string
}

// Recognize sends img to r with the configured languages and engine mode.
// Engine errors, including a timeout from cfg.RecognitionTimeout, come
// back as *RecognitionError.
func Recognize(ctx context.Context, r Recognizer, img *image.Gray, cfg Config) (string, error) {
	if r == nil {
		return "", &RecognitionError{Err: errors.New("no recognizer configured")}
	}
	engine := ""
	if n, ok := r.(namer); ok {
		engine = n.Name()
	}

	if cfg.RecognitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RecognitionTimeout)
		defer cancel()
	}

	req := RecognitionRequest{
		Image:     img,
		Languages: append([]Language(nil), cfg.Languages...),
		Mode:      cfg.Mode,
	}
	text, err := r.Recognize(ctx, req)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		var re *RecognitionError
		if errors.As(err, &re) {
			return "", err
		}
		return "", &RecognitionError{Engine: engine, Err: err}
	}
	return text, nil
}
