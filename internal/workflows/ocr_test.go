package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/internal/storage"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

type memReader struct {
	content   map[string][]byte
	existsErr error
	downloads int
}

func (m *memReader) GetReaderByContentID(_ context.Context, contentID string) (io.ReadCloser, error) {
	m.downloads++
	data, ok := m.content[contentID]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memReader) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.content[key]
	return ok, nil
}

type putCall struct {
	contentID string
	typ       string
	version   int
	body      []byte
	meta      map[string]string
}

type memWriter struct {
	existing bool
	puts     []putCall
}

func (m *memWriter) HasDerived(context.Context, string, string, int) (bool, error) {
	return m.existing, nil
}

func (m *memWriter) PutDerived(_ context.Context, contentID, typ string, version int, r io.Reader, meta map[string]string) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.puts = append(m.puts, putCall{contentID, typ, version, body, meta})
	return "derived-1", nil
}

type staticRecognizer struct {
	text      string
	err       error
	languages []string
}

func (s *staticRecognizer) Recognize(_ context.Context, req ocr.RecognitionRequest) (string, error) {
	s.languages = req.LanguageCodes()
	return s.text, s.err
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 10, 30, 30), image.NewUniform(color.Gray{Y: 0}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newWorkflow(reader ContentReader, writer DerivedWriter, rec ocr.Recognizer) *OCRWorkflow {
	p := ocr.NewPipeline(rec, ocr.WithLogger(logging.Nop()))
	return NewOCRWorkflow(reader, writer, p, logging.Nop())
}

func wctxFor(req pipeline.ProcessRequest) *WorkflowContext {
	return &WorkflowContext{Ctx: context.Background(), Request: req, RunID: "run-1"}
}

func TestOCRWorkflowWritesRecord(t *testing.T) {
	reader := &memReader{content: map[string][]byte{"c1": pagePNG(t)}}
	writer := &memWriter{}
	w := newWorkflow(reader, writer, &staticRecognizer{text: "  नमस्ते world \n"})

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("c1")))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "derived-1", result.Outputs["derived_id"])
	assert.Equal(t, "नमस्ते world", result.Outputs["text"])

	require.Len(t, writer.puts, 1)
	put := writer.puts[0]
	assert.Equal(t, "c1", put.contentID)
	assert.Equal(t, pipeline.DerivedTypeOCRText, put.typ)
	assert.Equal(t, 1, put.version)
	assert.Equal(t, "ocr_text_v1.json", put.meta["file_name"])
	assert.Equal(t, "application/json", put.meta["mime_type"])

	var record ocr.OutputRecord
	require.NoError(t, json.Unmarshal(put.body, &record))
	assert.Equal(t, "नमस्ते world", record.Text)
	assert.Equal(t, []string{"Hindi", "English"}, record.Languages)
	assert.True(t, record.OrientationCorrected)
}

func TestOCRWorkflowSkipsExistingDerived(t *testing.T) {
	reader := &memReader{content: map[string][]byte{"c1": pagePNG(t)}}
	writer := &memWriter{existing: true}
	rec := &staticRecognizer{text: "x"}
	w := newWorkflow(reader, writer, rec)

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("c1")))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, true, result.Outputs["skipped"])
	assert.Empty(t, writer.puts)
	assert.Nil(t, rec.languages)
}

func TestOCRWorkflowValidation(t *testing.T) {
	w := newWorkflow(&memReader{}, &memWriter{}, &staticRecognizer{})

	req := pipeline.NewOCRRequest("c1")
	req.Versions = map[string]int{}
	result, err := w.Execute(wctxFor(req))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "validation failed")

	req = pipeline.NewOCRRequest("c1")
	req.Versions[pipeline.DerivedTypeOCRText] = 0
	_, err = w.Execute(wctxFor(req))
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOCRWorkflowMissingContent(t *testing.T) {
	w := newWorkflow(&memReader{content: map[string][]byte{}}, &memWriter{}, &staticRecognizer{})

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("missing")))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, ErrContentNotFound.Error())
}

func TestOCRWorkflowExistsError(t *testing.T) {
	w := newWorkflow(&memReader{existsErr: errors.New("backend down")}, &memWriter{}, &staticRecognizer{})

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("c1")))
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestOCRWorkflowNonImageContentIsTerminal(t *testing.T) {
	reader := &memReader{
		content:   map[string][]byte{"c1": []byte("%PDF-1.7")},
		existsErr: fmt.Errorf("content c1: %w", ocr.CheckMediaType("application/pdf")),
	}
	writer := &memWriter{}
	w := newWorkflow(reader, writer, &staticRecognizer{text: "x"})

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("c1")))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "application/pdf")
	assert.Zero(t, reader.downloads)
	assert.Empty(t, writer.puts)
}

func TestOCRWorkflowFilesystemStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scans"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scans", "page.png"), pagePNG(t), 0644))
	fs, err := storage.NewFilesystemStorage(dir)
	require.NoError(t, err)

	w := newWorkflow(fs, fs, &staticRecognizer{text: "पृष्ठ एक"})
	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("scans/page.png")))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "scans/page.png.derived/ocr_text_v1/ocr_text_v1.json", result.Outputs["derived_id"])

	data, err := fs.ReadDerived(context.Background(), "scans/page.png.derived/ocr_text_v1/ocr_text_v1.json")
	require.NoError(t, err)
	var record ocr.OutputRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "पृष्ठ एक", record.Text)

	result, err = w.Execute(wctxFor(pipeline.NewOCRRequest("scans/page.png")))
	require.NoError(t, err)
	assert.Equal(t, true, result.Outputs["skipped"])
}

func TestOCRWorkflowInvalidImageIsTerminal(t *testing.T) {
	reader := &memReader{content: map[string][]byte{"c1": []byte("not an image")}}
	writer := &memWriter{}
	w := newWorkflow(reader, writer, &staticRecognizer{text: "x"})

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("c1")))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, writer.puts)
}

func TestOCRWorkflowRecognitionFailure(t *testing.T) {
	reader := &memReader{content: map[string][]byte{"c1": pagePNG(t)}}
	writer := &memWriter{}
	w := newWorkflow(reader, writer, &staticRecognizer{err: errors.New("engine crashed")})

	result, err := w.Execute(wctxFor(pipeline.NewOCRRequest("c1")))
	require.ErrorIs(t, err, ocr.ErrRecognitionFailure)
	assert.False(t, result.Success)
	assert.Empty(t, writer.puts)
}

func TestOCRWorkflowLanguageOverride(t *testing.T) {
	reader := &memReader{content: map[string][]byte{"c1": pagePNG(t)}}
	writer := &memWriter{}
	rec := &staticRecognizer{text: "hallo"}
	w := newWorkflow(reader, writer, rec)

	req := pipeline.NewOCRRequest("c1")
	req.Metadata = map[string]string{pipeline.MetaLanguages: "deu:German,eng:English"}
	result, err := w.Execute(wctxFor(req))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, []string{"deu", "eng"}, rec.languages)
	assert.Equal(t, []string{"German", "English"}, result.Outputs["languages"])

	req.Metadata[pipeline.MetaLanguages] = "deu:German"
	_, err = w.Execute(wctxFor(req))
	require.ErrorIs(t, err, ocr.ErrInvalidConfig)
}

func TestWorkflowRunnerDispatch(t *testing.T) {
	runner := NewWorkflowRunner(nil)
	reader := &memReader{content: map[string][]byte{"c1": pagePNG(t)}}
	runner.Register(pipeline.JobOCR, newWorkflow(reader, &memWriter{}, &staticRecognizer{text: "ok"}))

	result, err := runner.Run(wctxFor(pipeline.NewOCRRequest("c1")))
	require.NoError(t, err)
	assert.True(t, result.Success)

	req := pipeline.NewOCRRequest("c1")
	req.Job = "thumbnail"
	_, err = runner.Run(wctxFor(req))
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = runner.RunAsync(context.Background(), pipeline.NewOCRRequest("c1"))
	require.ErrorIs(t, err, ErrRuntimeUnavailable)

	_, err = runner.GetStatus(context.Background(), "run-1")
	require.ErrorIs(t, err, ErrRuntimeUnavailable)

	assert.Equal(t, []string{pipeline.JobOCR}, runner.Jobs())
}
