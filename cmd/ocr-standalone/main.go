package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-content/pkg/simplecontent"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tendant/simple-content-ocr/internal/config"
	"github.com/tendant/simple-content-ocr/internal/handlers"
	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/internal/metrics"
	"github.com/tendant/simple-content-ocr/internal/storage"
	"github.com/tendant/simple-content-ocr/internal/workflows"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/ocr/tesseract"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// Standalone OCR worker for quick testing.
// Uses in-memory repository + filesystem storage (STORAGE_DIR) and runs
// workflows synchronously, no DBOS or simple-content server needed.
func main() {
	config.LoadDotEnv()

	logger := logging.New(os.Stderr)
	defer logger.Sync()

	cfg, err := config.Load(":8080")
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	logger.Infof("OCR Standalone Worker")
	logger.Infof("  Mode: Embedded (in-memory DB + filesystem storage)")
	logger.Infof("  Storage directory: %s", cfg.StorageDir)
	logger.Infof("  HTTP address: %s", cfg.HTTPAddr)

	svc, cleanup, err := presets.NewDevelopment(
		presets.WithDevStorage(cfg.StorageDir),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize simple-content service: %v", err)
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	ocrPipeline := ocr.NewPipeline(
		tesseract.New(tesseract.WithTessdataPrefix(cfg.TessdataPrefix)),
		ocr.WithConfig(cfg.OCR),
		ocr.WithLogger(logger),
		ocr.WithObserver(recorder),
	)

	// No DBOS runtime: workflows run synchronously inside the request
	workflowRunner := workflows.NewWorkflowRunner(nil)
	ocrWorkflow := workflows.NewOCRWorkflow(storage.NewContentReader(svc), storage.NewDerivedWriter(svc), ocrPipeline, logger)
	workflowRunner.Register(pipeline.JobOCR, ocrWorkflow)
	logger.Infof("Registered workflow: %s for job: %s", ocrWorkflow.Name(), pipeline.JobOCR)

	handler := &Handler{
		workflowRunner: workflowRunner,
		service:        svc,
		logger:         logger,
	}
	recognizeHandler := handlers.NewRecognizeHandler(ocrPipeline, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/process", handler.handleProcess)
	mux.HandleFunc("/v1/recognize", recognizeHandler.HandleRecognize)
	mux.HandleFunc("/v1/test", handler.handleTest)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("OCR worker ready on %s", cfg.HTTPAddr)
		logger.Infof("Available endpoints:")
		logger.Infof("  GET  /health           - Health check")
		logger.Infof("  GET  /metrics          - Prometheus metrics")
		logger.Infof("  POST /v1/process       - OCR stored content (requires existing content_id)")
		logger.Infof("  POST /v1/recognize     - OCR an uploaded image (multipart field \"image\")")
		logger.Infof("  GET  /v1/test          - Run end-to-end test (render + upload + OCR + verify)")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Infof("Server stopped")
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"mode":   "standalone",
	})
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	workflowRunner *workflows.WorkflowRunner
	service        simplecontent.Service
	logger         *zap.SugaredLogger
}

// handleProcess runs the requested workflow synchronously
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pipeline.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.ContentID == "" {
		http.Error(w, "content_id is required", http.StatusBadRequest)
		return
	}
	if req.Job == "" {
		req.Job = pipeline.JobOCR
	}
	if req.Job == pipeline.JobOCR && len(req.Versions) == 0 {
		req.Versions = map[string]int{pipeline.DerivedTypeOCRText: 1}
	}

	runID := uuid.New().String()
	h.logger.Infof("[%s] Processing request: content_id=%s, job=%s", runID, req.ContentID, req.Job)

	result, err := h.workflowRunner.Run(&workflows.WorkflowContext{
		Ctx:     r.Context(),
		Request: req,
		RunID:   runID,
	})
	if err != nil {
		h.logger.Errorf("[%s] Workflow execution failed: %v", runID, err)
		http.Error(w, fmt.Sprintf("Workflow execution failed: %v", err), http.StatusInternalServerError)
		return
	}
	if !result.Success {
		h.logger.Warnf("[%s] Workflow completed with errors: %s", runID, result.Error)
		http.Error(w, fmt.Sprintf("Workflow failed: %s", result.Error), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":  runID,
		"outputs": result.Outputs,
	})
}

// handleTest renders a sample page, uploads it, runs OCR and lists the
// derived content
func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed (use GET or POST)", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	sample := r.URL.Query().Get("text")
	if sample == "" {
		sample = "HELLO OCR 2024"
	}

	h.logger.Infof("=== Running End-to-End Test ===")

	h.logger.Infof("Step 1: Rendering and uploading sample page")
	page, err := renderSample(sample)
	if err != nil {
		http.Error(w, fmt.Sprintf("Render failed: %v", err), http.StatusInternalServerError)
		return
	}

	content, err := h.service.UploadContent(ctx, simplecontent.UploadContentRequest{
		OwnerID:      uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		TenantID:     uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Name:         "OCR Sample Page",
		DocumentType: "image/png",
		Reader:       bytes.NewReader(page),
		FileName:     "ocr-sample.png",
		Tags:         []string{"test", "ocr"},
	})
	if err != nil {
		h.logger.Errorf("Failed to upload content: %v", err)
		http.Error(w, fmt.Sprintf("Upload failed: %v", err), http.StatusInternalServerError)
		return
	}
	h.logger.Infof("Content uploaded: %s (status: %s)", content.ID, content.Status)

	h.logger.Infof("Step 2: Running OCR workflow")
	runID := uuid.New().String()
	result, err := h.workflowRunner.Run(&workflows.WorkflowContext{
		Ctx:     ctx,
		Request: pipeline.NewOCRRequest(content.ID.String()),
		RunID:   runID,
	})
	if err != nil {
		h.logger.Errorf("Workflow execution failed: %v", err)
		http.Error(w, fmt.Sprintf("Workflow failed: %v", err), http.StatusInternalServerError)
		return
	}
	if !result.Success {
		http.Error(w, fmt.Sprintf("Workflow failed: %s", result.Error), http.StatusInternalServerError)
		return
	}

	h.logger.Infof("Step 3: Checking derived content")
	derived, err := h.service.ListDerivedContent(ctx, simplecontent.WithParentID(content.ID))
	if err != nil {
		http.Error(w, fmt.Sprintf("List derived failed: %v", err), http.StatusInternalServerError)
		return
	}
	for _, d := range derived {
		h.logger.Infof("  - Type: %s, Variant: %s, Status: %s", d.DerivationType, d.Variant, d.Status)
	}

	h.logger.Infof("=== Test Complete ===")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"test_status":   "success",
		"content_id":    content.ID.String(),
		"run_id":        runID,
		"expected_text": sample,
		"text":          result.Outputs["text"],
		"derived_count": len(derived),
	})
}

// renderSample draws text in the 7x13 bitmap font and scales it up so the
// glyph strokes survive smoothing
func renderSample(text string) ([]byte, error) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 20
	img := image.NewRGBA(image.Rect(0, 0, width, 33))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(10, 21),
	}
	d.DrawString(text)

	scaled := imaging.Resize(img, width*4, 0, imaging.NearestNeighbor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
