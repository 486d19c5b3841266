package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-content-ocr/internal/workflows"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

var (
	_ workflows.ContentReader = (*HTTPContentReader)(nil)
	_ workflows.DerivedWriter = (*HTTPDerivedWriter)(nil)
	_ workflows.ContentReader = (*ContentReader)(nil)
	_ workflows.DerivedWriter = (*DerivedWriter)(nil)
)

func newContentAPI(t *testing.T) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var posted map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/contents/c1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/v1/contents/doc", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "doc", "mime_type": "application/pdf"})
	})
	mux.HandleFunc("GET /api/v1/contents/scan", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "scan", "mime_type": "image/jpeg"})
	})
	mux.HandleFunc("GET /api/v1/contents/c1/download", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "image-bytes")
	})
	mux.HandleFunc("GET /api/v1/contents/c1/details", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"file_size": 11, "mime_type": "image/png"})
	})
	mux.HandleFunc("GET /api/v1/contents/c1/derived", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ocr_text", r.URL.Query().Get("derivation_type"))
		json.NewEncoder(w).Encode([]derivedEntry{{ID: "d0", DerivationType: "ocr_text", Variant: "ocr_text_v1"}})
	})
	mux.HandleFunc("POST /api/v1/contents/c1/derived", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(derivedEntry{ID: "d1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &posted
}

func TestHTTPContentReader(t *testing.T) {
	srv, _ := newContentAPI(t)
	cr := NewHTTPContentReader(srv.URL + "/")
	ctx := context.Background()

	ok, err := cr.Exists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cr.Exists(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cr.Exists(ctx, "scan")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cr.Exists(ctx, "doc")
	assert.ErrorIs(t, err, ocr.ErrInvalidImage)
	assert.False(t, ok)

	rc, err := cr.GetReaderByContentID(ctx, "c1")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "image-bytes", string(data))

	_, err = cr.GetReader(ctx, "c2")
	assert.Error(t, err)

	meta, err := cr.GetMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.Size)
	assert.Equal(t, "image/png", meta.ContentType)
}

func TestHTTPDerivedWriter(t *testing.T) {
	srv, posted := newContentAPI(t)
	dw := NewHTTPDerivedWriter(srv.URL)
	ctx := context.Background()

	has, err := dw.HasDerived(ctx, "c1", "ocr_text", 1)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = dw.HasDerived(ctx, "c1", "ocr_text", 2)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = dw.HasDerived(ctx, "c2", "ocr_text", 1)
	require.NoError(t, err)
	assert.False(t, has)

	id, err := dw.PutDerived(ctx, "c1", "ocr_text", 2, strings.NewReader(`{"text": "नमस्ते"}`),
		map[string]string{"file_name": "ocr_text_v2.json", "mime_type": "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "d1", id)
	assert.Equal(t, "ocr_text_v2", (*posted)["variant"])
	assert.Equal(t, "ocr_text_v2.json", (*posted)["file_name"])
	assert.Equal(t, "application/json", (*posted)["mime_type"])
	assert.Equal(t, `{"text": "नमस्ते"}`, (*posted)["content_data"])
}
