package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

// DefaultHTTPTimeout bounds calls to the simple-content HTTP API
const DefaultHTTPTimeout = 60 * time.Second

// HTTPContentReader provides read access to content via simple-content HTTP API
type HTTPContentReader struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPContentReader creates a new HTTP-based content reader
func NewHTTPContentReader(baseURL string) *HTTPContentReader {
	return &HTTPContentReader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// GetReaderByContentID returns a reader for content by content ID via HTTP API
func (cr *HTTPContentReader) GetReaderByContentID(ctx context.Context, contentID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/api/v1/contents/%s/download", cr.baseURL, contentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := cr.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download content: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// GetReader returns a reader for content (implements storage.Reader interface)
func (cr *HTTPContentReader) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return cr.GetReaderByContentID(ctx, key)
}

// Exists checks if content exists by content ID via HTTP API. Content
// recorded with a non-image MIME type fails with ocr.ErrInvalidImage
func (cr *HTTPContentReader) Exists(ctx context.Context, key string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/contents/%s", cr.baseURL, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := cr.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check content: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// a content body carrying a non-image mime_type is rejected up front
		var content struct {
			MimeType string `json:"mime_type"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&content); err == nil {
			if err := ocr.CheckMediaType(content.MimeType); err != nil {
				return false, fmt.Errorf("content %s: %w", key, err)
			}
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

type contentDetails struct {
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	ETag     string `json:"etag"`
}

// GetMetadata returns metadata for content from the details endpoint
func (cr *HTTPContentReader) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	url := fmt.Sprintf("%s/api/v1/contents/%s/details", cr.baseURL, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := cr.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get content details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("details failed with status %d", resp.StatusCode)
	}

	var details contentDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode details: %w", err)
	}

	return &Metadata{
		Size:        details.FileSize,
		ContentType: details.MimeType,
		ETag:        details.ETag,
	}, nil
}
