package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

// ContentReader serves source images from an embedded simple-content service
type ContentReader struct {
	service simplecontent.Service
}

// NewContentReader creates a new content reader using simple-content service
func NewContentReader(service simplecontent.Service) *ContentReader {
	return &ContentReader{
		service: service,
	}
}

func parseContentID(key string) (uuid.UUID, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid content ID %q: %w", key, err)
	}
	return id, nil
}

// GetReaderByContentID streams the original bytes of an image content
func (cr *ContentReader) GetReaderByContentID(ctx context.Context, contentID string) (io.ReadCloser, error) {
	id, err := parseContentID(contentID)
	if err != nil {
		return nil, err
	}

	reader, err := cr.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to download content %s: %w", contentID, err)
	}
	return reader, nil
}

// GetReader is GetReaderByContentID keyed by content ID
func (cr *ContentReader) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return cr.GetReaderByContentID(ctx, key)
}

// Exists reports whether the content is known to the service. Content whose
// recorded MIME type is not an image is rejected with ocr.ErrInvalidImage so
// it is never downloaded.
func (cr *ContentReader) Exists(ctx context.Context, key string) (bool, error) {
	id, err := parseContentID(key)
	if err != nil {
		return false, err
	}

	// simple-content does not export a not-found sentinel, any lookup
	// failure is reported as missing content
	details, err := cr.service.GetContentDetails(ctx, id)
	if err != nil {
		return false, nil
	}
	if err := ocr.CheckMediaType(details.MimeType); err != nil {
		return false, fmt.Errorf("content %s: %w", key, err)
	}
	return true, nil
}

// GetMetadata returns the recorded size and MIME type of a content
func (cr *ContentReader) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	id, err := parseContentID(key)
	if err != nil {
		return nil, err
	}

	details, err := cr.service.GetContentDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content details for %s: %w", key, err)
	}

	return &Metadata{
		Size:        details.FileSize,
		ContentType: details.MimeType,
	}, nil
}
