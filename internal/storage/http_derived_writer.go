package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPDerivedWriter provides write access for derived content via simple-content HTTP API
type HTTPDerivedWriter struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDerivedWriter creates a new HTTP-based derived content writer
func NewHTTPDerivedWriter(baseURL string) *HTTPDerivedWriter {
	return &HTTPDerivedWriter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

type derivedEntry struct {
	ID             string `json:"id"`
	DerivationType string `json:"derivation_type"`
	Variant        string `json:"variant"`
}

// HasDerived checks if a derived output already exists for the given type/version
func (dw *HTTPDerivedWriter) HasDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/contents/%s/derived?derivation_type=%s",
		dw.baseURL, contentID, url.QueryEscape(derivedType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := dw.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to list derived content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("list derived failed with status %d", resp.StatusCode)
	}

	var entries []derivedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return false, fmt.Errorf("failed to decode derived list: %w", err)
	}

	variant := VariantName(derivedType, derivedVersion)
	for _, e := range entries {
		if e.DerivationType == derivedType && e.Variant == variant {
			return true, nil
		}
	}
	return false, nil
}

// PutDerived creates derived content via simple-content HTTP API. The body
// is sent as a string, so payloads must be UTF-8 text such as JSON records.
func (dw *HTTPDerivedWriter) PutDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int, r io.Reader, meta map[string]string) (string, error) {
	variant := VariantName(derivedType, derivedVersion)

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	reqBody := map[string]interface{}{
		"parent_id":       contentID,
		"derivation_type": derivedType,
		"variant":         variant,
		"file_name":       derivedFileName(derivedType, meta),
		"tags":            []string{derivedType, variant},
		"content_data":    string(data),
	}
	if mime := meta["mime_type"]; mime != "" {
		reqBody["mime_type"] = mime
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/contents/%s/derived", dw.baseURL, contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dw.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create derived content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create derived failed with status %d: %s", resp.StatusCode, string(body))
	}

	var created derivedEntry
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("no ID in response")
	}

	return created.ID, nil
}
