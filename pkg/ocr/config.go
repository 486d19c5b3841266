package ocr

import (
	"fmt"
	"strings"
	"time"
)

// Language pairs the code handed to the recognition engine with the name
// written into the output record.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// EngineMode holds the fixed recognition engine parameters.
type EngineMode struct {
	// PageSegMode is the Tesseract page segmentation mode. 6 assumes a
	// single uniform block of text.
	PageSegMode int
	// EngineMode is the Tesseract OCR engine mode. 3 selects the best
	// engine available in the installed build.
	EngineMode int
}

// DenoiseConfig parameterizes the non-local-means pass.
type DenoiseConfig struct {
	Strength       float64
	TemplateWindow int
	SearchWindow   int
}

// NormalizeConfig parameterizes Normalize.
type NormalizeConfig struct {
	// BlurKernel is the side of the square Gaussian window. Only 3 is
	// supported; 0 means 3.
	BlurKernel int
	Denoise    DenoiseConfig
}

// Config is the explicit configuration of a Pipeline.
type Config struct {
	// Languages is the ordered primary/secondary language pair.
	Languages []Language
	Mode      EngineMode
	Normalize NormalizeConfig
	// RecognitionTimeout bounds the call into the recognizer. Zero disables it.
	RecognitionTimeout time.Duration
	// MaxPixels caps width*height of accepted images, checked before the
	// pixels are decoded. Zero disables the cap.
	MaxPixels int
}

// Default parameter values.
const (
	DefaultPageSegMode     = 6
	DefaultEngineMode      = 3
	DefaultBlurKernel      = 3
	DefaultDenoiseStrength = 10
	DefaultTemplateWindow  = 7
	DefaultSearchWindow    = 21
	DefaultMaxPixels       = 40_000_000
)

// DefaultLanguages returns the Hindi/English pair.
func DefaultLanguages() []Language {
	return []Language{
		{Code: "hin", Name: "Hindi"},
		{Code: "eng", Name: "English"},
	}
}

// DefaultNormalizeConfig returns the standard smoothing and denoise parameters.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{
		BlurKernel: DefaultBlurKernel,
		Denoise: DenoiseConfig{
			Strength:       DefaultDenoiseStrength,
			TemplateWindow: DefaultTemplateWindow,
			SearchWindow:   DefaultSearchWindow,
		},
	}
}

// DefaultConfig returns the configuration of the reference deployment:
// hin+eng, PSM 6, OEM 3, 3x3 blur and NLM(10, 7, 21).
func DefaultConfig() Config {
	return Config{
		Languages: DefaultLanguages(),
		Mode: EngineMode{
			PageSegMode: DefaultPageSegMode,
			EngineMode:  DefaultEngineMode,
		},
		Normalize: DefaultNormalizeConfig(),
		MaxPixels: DefaultMaxPixels,
	}
}

// Validate checks the language pair, the engine mode and the normalize
// parameters.
func (c Config) Validate() error {
	if len(c.Languages) != 2 {
		return fmt.Errorf("%w: expected 2 languages, got %d", ErrInvalidConfig, len(c.Languages))
	}
	for i, l := range c.Languages {
		if strings.TrimSpace(l.Code) == "" || strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("%w: language %d needs both code and name", ErrInvalidConfig, i)
		}
	}
	if c.Mode.PageSegMode < 0 || c.Mode.PageSegMode > 13 {
		return fmt.Errorf("%w: page segmentation mode %d out of range", ErrInvalidConfig, c.Mode.PageSegMode)
	}
	if c.Mode.EngineMode < 0 || c.Mode.EngineMode > 3 {
		return fmt.Errorf("%w: engine mode %d out of range", ErrInvalidConfig, c.Mode.EngineMode)
	}
	if c.RecognitionTimeout < 0 {
		return fmt.Errorf("%w: negative recognition timeout", ErrInvalidConfig)
	}
	if c.MaxPixels < 0 {
		return fmt.Errorf("%w: negative pixel limit", ErrInvalidConfig)
	}
	return c.Normalize.Validate()
}

// Validate checks window sizes and strength.
func (c NormalizeConfig) Validate() error {
	if c.BlurKernel != 0 && c.BlurKernel != 3 {
		return fmt.Errorf("%w: unsupported blur kernel %d", ErrInvalidConfig, c.BlurKernel)
	}
	d := c.Denoise
	if d.Strength <= 0 {
		return fmt.Errorf("%w: denoise strength must be positive", ErrInvalidConfig)
	}
	if d.TemplateWindow <= 0 || d.TemplateWindow%2 == 0 {
		return fmt.Errorf("%w: template window %d must be odd and positive", ErrInvalidConfig, d.TemplateWindow)
	}
	if d.SearchWindow <= 0 || d.SearchWindow%2 == 0 {
		return fmt.Errorf("%w: search window %d must be odd and positive", ErrInvalidConfig, d.SearchWindow)
	}
	return nil
}

// LanguageCodes returns the engine codes in order.
func (c Config) LanguageCodes() []string {
	codes := make([]string, len(c.Languages))
	for i, l := range c.Languages {
		codes[i] = l.Code
	}
	return codes
}

// ParseLanguages parses "hin:Hindi,eng:English". A bare code uses the code
// as its name.
func ParseLanguages(s string) ([]Language, error) {
	var langs []Language
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, name, found := strings.Cut(part, ":")
		code = strings.TrimSpace(code)
		name = strings.TrimSpace(name)
		if !found {
			name = code
		}
		if code == "" || name == "" {
			return nil, fmt.Errorf("%w: malformed language %q", ErrInvalidConfig, part)
		}
		langs = append(langs, Language{Code: code, Name: name})
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("%w: no languages in %q", ErrInvalidConfig, s)
	}
	return langs, nil
}
