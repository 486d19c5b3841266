package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

func newWorker(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/process", func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContentID == "" {
			http.Error(w, "content_id is required", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(pipeline.ProcessResponse{RunID: req.Job + "-" + req.ContentID, DedupeSeenCount: 1})
	})
	mux.HandleFunc("GET /v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "run-1" {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"run_id":"run-1","state":"SUCCESS"}`)
	})
	mux.HandleFunc("POST /v1/recognize", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" {
			http.Error(w, "invalid image", http.StatusBadRequest)
			return
		}
		io.WriteString(w, "{\n    \"text\": \"नमस्ते\",\n    \"languages\": [\"Hindi\", \"English\"],\n    \"orientation_corrected\": true\n}\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessOCR(t *testing.T) {
	c := New(newWorker(t).URL + "/")

	resp, err := c.ProcessOCR(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "ocr-c1", resp.RunID)
	assert.Equal(t, 1, resp.DedupeSeenCount)

	_, err = c.Process(context.Background(), pipeline.ProcessRequest{Job: pipeline.JobOCR})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "content_id is required", statusErr.Body)
}

func TestStatus(t *testing.T) {
	c := New(newWorker(t).URL)

	status, err := c.Status(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", status.State)

	_, err = c.Status(context.Background(), "run-2")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestRecognize(t *testing.T) {
	c := New(newWorker(t).URL)

	record, err := c.Recognize(context.Background(), "page.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते", record.Text)
	assert.Equal(t, []string{"Hindi", "English"}, record.Languages)
	assert.True(t, record.OrientationCorrected)

	_, err = c.Recognize(context.Background(), "page.png", strings.NewReader("junk"))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}
