// Package config reads worker and CLI settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-content-ocr/internal/dbosruntime"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	// BackendEmbedded runs the simple-content development preset in process.
	BackendEmbedded = "embedded"
	// BackendHTTP talks to a remote simple-content API at CONTENT_API_URL.
	BackendHTTP = "http"
	// BackendFilesystem reads images from STORAGE_DIR and writes records
	// next to them. Content IDs are paths relative to the directory.
	BackendFilesystem = "fs"
)

// Config holds the settings shared by the binaries in cmd/.
type Config struct {
	HTTPAddr       string
	StorageBackend string
	ContentAPIURL  string
	StorageDir     string

	DatabaseURL        string
	QueueName          string
	Concurrency        int
	ApplicationVersion string

	TessdataPrefix string
	LogLevel       string

	OCR ocr.Config
}

// LoadDotEnv loads .env files into the environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Load builds a Config from the environment. defaultAddr is used when
// OCR_HTTP_ADDR is unset.
func Load(defaultAddr string) (*Config, error) {
	cfg := &Config{
		HTTPAddr:           getEnv("OCR_HTTP_ADDR", defaultAddr),
		ContentAPIURL:      os.Getenv("CONTENT_API_URL"),
		StorageDir:         getEnv("STORAGE_DIR", "./dev-data"),
		DatabaseURL:        os.Getenv("DBOS_SYSTEM_DATABASE_URL"),
		QueueName:          getEnv("DBOS_QUEUE_NAME", dbosruntime.DefaultQueueName),
		ApplicationVersion: os.Getenv("DBOS_APPLICATION_VERSION"),
		TessdataPrefix:     os.Getenv("TESSDATA_PREFIX"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		OCR:                ocr.DefaultConfig(),
	}

	var err error
	if cfg.StorageBackend, err = storageBackend(os.Getenv("STORAGE_BACKEND"), cfg.ContentAPIURL); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = getInt("DBOS_CONCURRENCY", dbosruntime.DefaultConcurrency); err != nil {
		return nil, err
	}

	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		langs, err := ocr.ParseLanguages(v)
		if err != nil {
			return nil, fmt.Errorf("OCR_LANGUAGES: %w", err)
		}
		cfg.OCR.Languages = langs
	}
	if cfg.OCR.Mode.PageSegMode, err = getInt("OCR_PSM", ocr.DefaultPageSegMode); err != nil {
		return nil, err
	}
	if cfg.OCR.Mode.EngineMode, err = getInt("OCR_OEM", ocr.DefaultEngineMode); err != nil {
		return nil, err
	}
	if v := os.Getenv("OCR_RECOGNITION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("OCR_RECOGNITION_TIMEOUT: %w", err)
		}
		cfg.OCR.RecognitionTimeout = d
	}
	if cfg.OCR.MaxPixels, err = getInt("OCR_MAX_PIXELS", ocr.DefaultMaxPixels); err != nil {
		return nil, err
	}

	if err := cfg.OCR.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// storageBackend picks the backend, defaulting to the HTTP API when a URL
// is configured and to the embedded service otherwise.
func storageBackend(name, apiURL string) (string, error) {
	switch name {
	case "":
		if apiURL != "" {
			return BackendHTTP, nil
		}
		return BackendEmbedded, nil
	case BackendHTTP:
		if apiURL == "" {
			return "", fmt.Errorf("STORAGE_BACKEND=%s requires CONTENT_API_URL", name)
		}
		return name, nil
	case BackendEmbedded, BackendFilesystem:
		return name, nil
	default:
		return "", fmt.Errorf("STORAGE_BACKEND: unknown backend %q", name)
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
