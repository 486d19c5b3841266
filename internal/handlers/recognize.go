package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

// MaxUploadBytes caps the size of an uploaded image
const MaxUploadBytes = 32 << 20

// ImageRunner runs the OCR pipeline over an encoded image
type ImageRunner interface {
	Run(ctx context.Context, r io.Reader) (ocr.OutputRecord, error)
}

// RecognizeHandler serves synchronous OCR requests
type RecognizeHandler struct {
	pipeline ImageRunner
	logger   logging.Logger
}

// NewRecognizeHandler creates a handler around p
func NewRecognizeHandler(p ImageRunner, logger logging.Logger) *RecognizeHandler {
	if logger == nil {
		logger = logging.Default
	}
	return &RecognizeHandler{pipeline: p, logger: logger}
}

// HandleRecognize handles POST /v1/recognize. The image is taken from the
// multipart field "image", or from the raw body for image/* requests.
func (h *RecognizeHandler) HandleRecognize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	data, err := readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	h.logger.Infof("Recognizing uploaded image, size: %d bytes", len(data))

	record, err := h.pipeline.Run(r.Context(), bytes.NewReader(data))
	if err != nil {
		h.logger.Errorf("Recognition request failed: %v", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := record.Encode(&buf); err != nil {
		http.Error(w, "Failed to encode record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func readImage(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") || contentType == "application/octet-stream" {
		return io.ReadAll(r.Body)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("image field: %w", err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ocr.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrRecognitionFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
