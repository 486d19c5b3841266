package dbosruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://localhost/ocr", AppName: "ocr-worker"}
	require.NoError(t, cfg.Validate())
	cfg.WithDefaults()
	assert.Equal(t, DefaultQueueName, cfg.QueueName)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)

	cfg = Config{DatabaseURL: "postgres://localhost/ocr", AppName: "ocr-worker", QueueName: "pages", Concurrency: 8}
	cfg.WithDefaults()
	assert.Equal(t, "pages", cfg.QueueName)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestConfigValidate(t *testing.T) {
	assert.ErrorIs(t, (&Config{AppName: "x"}).Validate(), ErrDatabaseURLRequired)
	assert.Error(t, (&Config{DatabaseURL: "postgres://x"}).Validate())
	assert.Error(t, (&Config{DatabaseURL: "postgres://x", AppName: "x", Concurrency: -1}).Validate())
}

func TestNewRuntimeRequiresDatabase(t *testing.T) {
	_, err := NewRuntime(context.Background(), Config{AppName: "ocr-worker"})
	require.ErrorIs(t, err, ErrDatabaseURLRequired)
}
