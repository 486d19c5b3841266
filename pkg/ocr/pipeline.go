// Package ocr implements the image-to-text pipeline: EXIF orientation
// correction, normalization into a two-level buffer, a call into a
// recognition engine and packaging of the trimmed text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tendant/simple-content-ocr/internal/logging"
)

// Stage names reported to an Observer.
const (
	StageDecode    = "decode"
	StageOrient    = "orient"
	StageNormalize = "normalize"
	StageRecognize = "recognize"
	StagePackage   = "package"
)

// Run outcomes reported to an Observer.
const (
	OutcomeSuccess           = "success"
	OutcomeInvalidImage      = "invalid_image"
	OutcomeRecognitionFailed = "recognition_failed"
	OutcomeError             = "error"
)

// Observer receives timings and outcomes of pipeline runs.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveRun(outcome string)
	ObserveOrientation(o Orientation, ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration)   {}
func (nopObserver) ObserveRun(string)                    {}
func (nopObserver) ObserveOrientation(Orientation, bool) {}

// Pipeline runs one image at a time through correction, normalization,
// recognition and packaging. It keeps no per-run state and may be shared.
type Pipeline struct {
	recognizer Recognizer
	config     Config
	logger     logging.Logger
	observer   Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.config = cfg }
}

// WithLogger sets the logger. Defaults to logging.Default.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewPipeline creates a pipeline around recognizer.
func NewPipeline(recognizer Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer: recognizer,
		config:     DefaultConfig(),
		logger:     logging.Default,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Derive returns a copy of p with opts applied on top of its settings.
func (p *Pipeline) Derive(opts ...Option) *Pipeline {
	d := *p
	for _, opt := range opts {
		opt(&d)
	}
	return &d
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// RunFile opens path and runs the pipeline on its contents.
func (p *Pipeline) RunFile(ctx context.Context, path string) (OutputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return OutputRecord{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return p.Run(ctx, f)
}

// Run processes the encoded image read from r. Any failure aborts the run
// and no record is returned.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (OutputRecord, error) {
	record, err := p.run(ctx, r)
	p.observer.ObserveRun(outcomeOf(err))
	return record, err
}

func (p *Pipeline) run(ctx context.Context, r io.Reader) (OutputRecord, error) {
	if err := p.config.Validate(); err != nil {
		return OutputRecord{}, err
	}

	start := time.Now()
	src, err := DecodeSourceLimit(r, p.config.MaxPixels)
	p.observer.ObserveStage(StageDecode, time.Since(start))
	if err != nil {
		p.logger.Warnf("Failed to decode image: %v", err)
		return OutputRecord{}, err
	}
	b := src.Image.Bounds()
	p.logger.Debugf("Image decoded, format: %s, size: %dx%d", src.Format, b.Dx(), b.Dy())

	start = time.Now()
	p.observer.ObserveOrientation(src.Orientation, src.HasOrientation)
	corrected := src.Corrected()
	p.observer.ObserveStage(StageOrient, time.Since(start))
	if src.HasOrientation && src.Orientation.Rotates() {
		cb := corrected.Bounds()
		p.logger.Debugf("Orientation %d corrected: %dx%d", src.Orientation, cb.Dx(), cb.Dy())
	}

	start = time.Now()
	normalized, err := Normalize(corrected, p.config.Normalize)
	p.observer.ObserveStage(StageNormalize, time.Since(start))
	if err != nil {
		return OutputRecord{}, err
	}

	start = time.Now()
	text, err := Recognize(ctx, p.recognizer, normalized, p.config)
	p.observer.ObserveStage(StageRecognize, time.Since(start))
	if err != nil {
		p.logger.Errorf("Recognition failed: %v", err)
		return OutputRecord{}, err
	}

	start = time.Now()
	record := PackageResult(text, p.config.Languages, true)
	p.observer.ObserveStage(StagePackage, time.Since(start))
	p.logger.Debugf("Recognized %d characters", len([]rune(record.Text)))

	return record, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidImage):
		return OutcomeInvalidImage
	case errors.Is(err, ErrRecognitionFailure):
		return OutcomeRecognitionFailed
	default:
		return OutcomeError
	}
}
