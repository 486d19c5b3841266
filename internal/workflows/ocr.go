package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// ContentReader interface for reading content
type ContentReader interface {
	GetReaderByContentID(ctx context.Context, contentID string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// DerivedWriter interface for writing derived content
type DerivedWriter interface {
	HasDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int) (bool, error)
	PutDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int, r io.Reader, meta map[string]string) (string, error)
}

// OCRWorkflow extracts text from image content and stores the JSON record
// as derived content
type OCRWorkflow struct {
	contentReader ContentReader
	derivedWriter DerivedWriter
	pipeline      *ocr.Pipeline
	logger        logging.Logger
}

// NewOCRWorkflow creates a new OCR workflow
func NewOCRWorkflow(contentReader ContentReader, derivedWriter DerivedWriter, p *ocr.Pipeline, logger logging.Logger) *OCRWorkflow {
	if logger == nil {
		logger = logging.Default
	}
	return &OCRWorkflow{
		contentReader: contentReader,
		derivedWriter: derivedWriter,
		pipeline:      p,
		logger:        logger,
	}
}

// Name returns the workflow name
func (w *OCRWorkflow) Name() string {
	return "OCRWorkflow"
}

// Execute runs the OCR workflow
func (w *OCRWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	w.logger.Infof("[%s] Starting OCR workflow for content_id=%s", wctx.RunID, wctx.Request.ContentID)

	// Step 1: Validate request
	if err := w.validateRequest(&wctx.Request); err != nil {
		w.logger.Warnf("[%s] Validation failed: %v", wctx.RunID, err)
		return failed(fmt.Errorf("validation failed: %w", err)), err
	}

	p, err := w.pipelineFor(&wctx.Request)
	if err != nil {
		w.logger.Warnf("[%s] Invalid language override: %v", wctx.RunID, err)
		return failed(err), err
	}

	derivedType := pipeline.DerivedTypeOCRText
	derivedVersion := wctx.Request.Versions[derivedType]

	// Step 2: Check if derived content already exists (skip if present)
	hasDerived, err := w.derivedWriter.HasDerived(wctx.Ctx, wctx.Request.ContentID, derivedType, derivedVersion)
	if err != nil {
		// a failed check is not fatal, the record is regenerated
		w.logger.Warnf("[%s] Failed to check derived content: %v", wctx.RunID, err)
	} else if hasDerived {
		w.logger.Infof("[%s] Derived content already exists (type=%s, version=%d) - skipping", wctx.RunID, derivedType, derivedVersion)
		return &WorkflowResult{
			Success: true,
			Outputs: map[string]interface{}{
				"content_id":   wctx.Request.ContentID,
				"derived_type": derivedType,
				"version":      derivedVersion,
				"skipped":      true,
			},
		}, nil
	}

	// Step 3: Check if source content exists
	exists, err := w.contentReader.Exists(wctx.Ctx, wctx.Request.ContentID)
	if err != nil {
		w.logger.Errorf("[%s] Failed to check content existence: %v", wctx.RunID, err)
		if errors.Is(err, ocr.ErrInvalidImage) {
			return failed(err), nil
		}
		return failed(fmt.Errorf("content check failed: %w", err)), err
	}
	if !exists {
		w.logger.Warnf("[%s] Source content not found: %s", wctx.RunID, wctx.Request.ContentID)
		return failed(fmt.Errorf("%w: %s", ErrContentNotFound, wctx.Request.ContentID)), nil
	}

	// Step 4: Download source content
	reader, err := w.contentReader.GetReaderByContentID(wctx.Ctx, wctx.Request.ContentID)
	if err != nil {
		w.logger.Errorf("[%s] Failed to download source content: %v", wctx.RunID, err)
		return failed(fmt.Errorf("download failed: %w", err)), err
	}
	defer reader.Close()

	imageData, err := io.ReadAll(reader)
	if err != nil {
		w.logger.Errorf("[%s] Failed to read image data: %v", wctx.RunID, err)
		return failed(fmt.Errorf("image read failed: %w", err)), err
	}
	w.logger.Infof("[%s] Source content downloaded, size: %d bytes", wctx.RunID, len(imageData))

	// Step 5: Run the pipeline
	record, err := p.Run(wctx.Ctx, bytes.NewReader(imageData))
	if err != nil {
		w.logger.Errorf("[%s] OCR failed: %v", wctx.RunID, err)
		if errors.Is(err, ocr.ErrInvalidImage) {
			// retrying cannot fix undecodable content
			return failed(err), nil
		}
		return failed(err), err
	}
	w.logger.Infof("[%s] Recognized %d characters", wctx.RunID, len([]rune(record.Text)))

	var buf bytes.Buffer
	if err := record.Encode(&buf); err != nil {
		w.logger.Errorf("[%s] Failed to encode record: %v", wctx.RunID, err)
		return failed(fmt.Errorf("record encode failed: %w", err)), err
	}

	// Step 6: Write derived content
	meta := map[string]string{
		"file_name": fmt.Sprintf("%s_v%d.json", derivedType, derivedVersion),
		"mime_type": "application/json",
	}

	derivedID, err := w.derivedWriter.PutDerived(wctx.Ctx, wctx.Request.ContentID, derivedType, derivedVersion, &buf, meta)
	if err != nil {
		w.logger.Errorf("[%s] Failed to write derived content: %v", wctx.RunID, err)
		return failed(fmt.Errorf("derived write failed: %w", err)), err
	}

	w.logger.Infof("[%s] Derived content written: %s", wctx.RunID, derivedID)
	w.logger.Infof("[%s] OCR workflow completed successfully", wctx.RunID)

	return &WorkflowResult{
		Success: true,
		Outputs: map[string]interface{}{
			"content_id":            wctx.Request.ContentID,
			"derived_id":            derivedID,
			"derived_type":          derivedType,
			"version":               derivedVersion,
			"text":                  record.Text,
			"languages":             record.Languages,
			"orientation_corrected": record.OrientationCorrected,
		},
	}, nil
}

// pipelineFor applies a per-request language override from metadata
func (w *OCRWorkflow) pipelineFor(req *pipeline.ProcessRequest) (*ocr.Pipeline, error) {
	override, ok := req.Metadata[pipeline.MetaLanguages]
	if !ok || override == "" {
		return w.pipeline, nil
	}

	langs, err := ocr.ParseLanguages(override)
	if err != nil {
		return nil, err
	}
	cfg := w.pipeline.Config()
	cfg.Languages = langs
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return w.pipeline.Derive(ocr.WithConfig(cfg)), nil
}

// validateRequest validates the workflow request
func (w *OCRWorkflow) validateRequest(req *pipeline.ProcessRequest) error {
	if req.ContentID == "" {
		return fmt.Errorf("%w: content_id is required", ErrInvalidRequest)
	}

	version, ok := req.Versions[pipeline.DerivedTypeOCRText]
	if !ok {
		return fmt.Errorf("%w: ocr_text version not provided in versions map", ErrInvalidRequest)
	}

	if version < 1 {
		return fmt.Errorf("%w: invalid ocr_text version: %d", ErrInvalidRequest, version)
	}

	return nil
}
