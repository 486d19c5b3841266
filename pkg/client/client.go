// Package client talks to a running OCR worker over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// Client is an HTTP client for the OCR worker
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new OCR worker client
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{
		// recognition of a full page can take a while
		Timeout: 2 * time.Minute,
	})
}

// NewWithHTTPClient creates a new client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StatusError is returned for non-success responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Process enqueues content processing and returns the run id
func (c *Client) Process(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var processResp pipeline.ProcessResponse
	if err := c.do(httpReq, &processResp, http.StatusAccepted, http.StatusOK); err != nil {
		return nil, err
	}
	return &processResp, nil
}

// ProcessOCR enqueues version 1 of the OCR record for contentID
func (c *Client) ProcessOCR(ctx context.Context, contentID string) (*pipeline.ProcessResponse, error) {
	return c.Process(ctx, pipeline.NewOCRRequest(contentID))
}

// RunStatus mirrors the worker's run status response
type RunStatus struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// Status fetches the state of a run
func (c *Client) Status(ctx context.Context, runID string) (*RunStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var status RunStatus
	if err := c.do(httpReq, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}

// Recognize uploads an encoded image and returns the OCR record
func (c *Client) Recognize(ctx context.Context, filename string, image io.Reader) (*ocr.OutputRecord, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/recognize", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var record ocr.OutputRecord
	if err := c.do(httpReq, &record, http.StatusOK); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) do(req *http.Request, out interface{}, accept ...int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
