package storage

import (
	"context"
	"fmt"
	"io"
)

// Reader provides read access to stored content
type Reader interface {
	// GetReader returns a reader for the content at the given key
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if content exists at the given key
	Exists(ctx context.Context, key string) (bool, error)
}

// Metadata contains storage object metadata
type Metadata struct {
	Size        int64
	ContentType string
	ETag        string
}

// ReaderWithMetadata provides read access with metadata
type ReaderWithMetadata interface {
	Reader

	// GetMetadata returns metadata for content at the given key
	GetMetadata(ctx context.Context, key string) (*Metadata, error)
}

// VariantName returns the simple-content variant for a derived type and
// version, e.g. "ocr_text_v1"
func VariantName(derivedType string, derivedVersion int) string {
	return fmt.Sprintf("%s_v%d", derivedType, derivedVersion)
}

func derivedFileName(derivedType string, meta map[string]string) string {
	if name := meta["file_name"]; name != "" {
		return name
	}
	return fmt.Sprintf("derived_%s.dat", derivedType)
}
