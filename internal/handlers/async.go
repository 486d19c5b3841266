package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/internal/workflows"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// Runner enqueues workflows and reports their status
type Runner interface {
	RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error)
	GetStatus(ctx context.Context, runID string) (*workflows.WorkflowStatus, error)
}

// SeenCounter records submissions for dedupe reporting
type SeenCounter interface {
	Record(ctx context.Context, contentID string, pipeline string, pipelineVersion int) (int, error)
}

// NamedStarter starts workflows registered by another worker, by name
type NamedStarter interface {
	StartWorkflowByName(ctx context.Context, workflowName string, contentID string, metadata map[string]interface{}) (string, error)
}

// AsyncHandler handles asynchronous workflow requests
type AsyncHandler struct {
	workflowRunner Runner
	dedupe         SeenCounter
	remote         NamedStarter
	logger         logging.Logger
}

// AsyncOption configures an AsyncHandler
type AsyncOption func(*AsyncHandler)

// WithDedupe reports seen counts from the given ledger
func WithDedupe(c SeenCounter) AsyncOption {
	return func(h *AsyncHandler) { h.dedupe = c }
}

// WithRemoteWorkflows forwards jobs with no local workflow to s
func WithRemoteWorkflows(s NamedStarter) AsyncOption {
	return func(h *AsyncHandler) { h.remote = s }
}

// WithAsyncLogger sets the handler logger
func WithAsyncLogger(l logging.Logger) AsyncOption {
	return func(h *AsyncHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewAsyncHandler creates a new async handler
func NewAsyncHandler(runner Runner, opts ...AsyncOption) *AsyncHandler {
	h := &AsyncHandler{
		workflowRunner: runner,
		logger:         logging.Default,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleProcessAsync handles POST /v1/process - enqueues workflow and returns immediately
func (h *AsyncHandler) HandleProcessAsync(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, "job is required", http.StatusBadRequest)
		return
	}
	if req.Job == pipeline.JobOCR && len(req.Versions) == 0 {
		req.Versions = map[string]int{pipeline.DerivedTypeOCRText: 1}
	}

	h.logger.Infof("Enqueueing workflow: content_id=%s, job=%s", req.ContentID, req.Job)

	runID, err := h.workflowRunner.RunAsync(r.Context(), req)
	if errors.Is(err, workflows.ErrWorkflowNotFound) && h.remote != nil {
		h.logger.Infof("No local workflow for job=%s, starting by name", req.Job)
		runID, err = h.remote.StartWorkflowByName(r.Context(), req.Job, req.ContentID, metadataOf(req))
	}
	if err != nil {
		h.logger.Errorf("Failed to enqueue workflow: %v", err)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workflows.ErrWorkflowNotFound):
			status = http.StatusBadRequest
		case errors.Is(err, workflows.ErrRuntimeUnavailable):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, fmt.Sprintf("Failed to enqueue workflow: %v", err), status)
		return
	}

	h.logger.Infof("Workflow enqueued successfully: run_id=%s", runID)

	seen := 0
	if h.dedupe != nil {
		// the run is already queued, a ledger failure only loses the count
		seen, err = h.dedupe.Record(r.Context(), req.ContentID, req.Job, req.Versions[pipeline.DerivedTypeOCRText])
		if err != nil {
			h.logger.Warnf("Failed to record dedupe: %v", err)
		}
	}

	writeJSON(w, http.StatusAccepted, pipeline.ProcessResponse{
		RunID:           runID,
		DedupeSeenCount: seen,
	})
}

// HandleStatus handles GET /v1/runs/{runID} - returns workflow status
func (h *AsyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	h.logger.Debugf("Checking workflow status: run_id=%s", runID)

	status, err := h.workflowRunner.GetStatus(r.Context(), runID)
	if err != nil {
		h.logger.Warnf("Failed to get workflow status: %v", err)
		switch {
		case errors.Is(err, workflows.ErrRunNotFound):
			http.Error(w, "Workflow not found", http.StatusNotFound)
		case errors.Is(err, workflows.ErrRuntimeUnavailable):
			http.Error(w, "Status tracking unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Failed to get workflow status", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func metadataOf(req pipeline.ProcessRequest) map[string]interface{} {
	meta := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["versions"] = req.Versions
	return meta
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
