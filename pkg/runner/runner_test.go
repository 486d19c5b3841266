package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-content-ocr/internal/dbosruntime"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/ocr/tesseract"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, ocr.DefaultConfig(), cfg.pipelineConfig())
	assert.IsType(t, &tesseract.Engine{}, cfg.recognizer())

	custom := ocr.DefaultConfig()
	custom.Mode.PageSegMode = 3
	cfg.OCR = custom
	assert.Equal(t, 3, cfg.pipelineConfig().Mode.PageSegMode)
}

func TestNewValidates(t *testing.T) {
	bad := ocr.DefaultConfig()
	bad.Languages = bad.Languages[:1]
	_, err := New(Config{OCR: bad, ContentAPIURL: "http://localhost:4000"})
	require.ErrorIs(t, err, ocr.ErrInvalidConfig)

	_, err = New(Config{AppName: "ocr"})
	require.Error(t, err)

	_, err = New(Config{AppName: "ocr", ContentAPIURL: "http://localhost:4000"})
	require.ErrorIs(t, err, dbosruntime.ErrDatabaseURLRequired)
}

func TestNewClientRequiresDatabase(t *testing.T) {
	_, err := NewClient(Config{AppName: "ocr"})
	require.ErrorIs(t, err, dbosruntime.ErrDatabaseURLRequired)
}
