package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"

	"github.com/tendant/simple-content-ocr/internal/dbosruntime"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.ProcessRequest
	RunID   string
}

// WorkflowResult contains the result of workflow execution.
// Error is a message rather than an error value so results survive
// serialization by the DBOS runtime.
type WorkflowResult struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Outputs map[string]interface{} `json:"outputs,omitempty"`
}

func failed(err error) *WorkflowResult {
	return &WorkflowResult{Success: false, Error: err.Error()}
}

// Workflow defines the interface for processing workflows
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// WorkflowRunner executes workflows
type WorkflowRunner struct {
	workflows   map[string]Workflow
	remote      map[string]bool
	dbosRuntime *dbosruntime.Runtime
}

// NewWorkflowRunner creates a new workflow runner. dbosRuntime may be nil,
// in which case only synchronous Run is available.
func NewWorkflowRunner(dbosRuntime *dbosruntime.Runtime) *WorkflowRunner {
	runner := &WorkflowRunner{
		workflows:   make(map[string]Workflow),
		remote:      make(map[string]bool),
		dbosRuntime: dbosRuntime,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWorkflowDBOS)
	}

	return runner
}

// Register registers a workflow
func (r *WorkflowRunner) Register(job string, workflow Workflow) {
	r.workflows[job] = workflow
}

// RegisterRemote marks job as executed by workers in other processes, so
// RunAsync may enqueue it without a local workflow
func (r *WorkflowRunner) RegisterRemote(job string) {
	r.remote[job] = true
}

// Run executes a workflow for the given job type synchronously
func (r *WorkflowRunner) Run(wctx *WorkflowContext) (*WorkflowResult, error) {
	workflow, ok := r.workflows[wctx.Request.Job]
	if !ok {
		return failed(ErrWorkflowNotFound), ErrWorkflowNotFound
	}

	return workflow.Execute(wctx)
}

// RunAsync enqueues a workflow for async execution via DBOS
func (r *WorkflowRunner) RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error) {
	if r.dbosRuntime == nil {
		return "", ErrRuntimeUnavailable
	}
	if _, ok := r.workflows[req.Job]; !ok && !r.remote[req.Job] {
		return "", fmt.Errorf("%w: %s", ErrWorkflowNotFound, req.Job)
	}

	// Generate workflow ID for exactly-once semantics
	workflowID := fmt.Sprintf("%s-%s-%d", req.Job, req.ContentID, time.Now().UnixNano())

	handle, err := dbos.RunWorkflow[pipeline.ProcessRequest, *WorkflowResult](
		r.dbosRuntime.Context(),
		r.executeWorkflowDBOS,
		req,
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	if err != nil {
		return "", err
	}

	return handle.GetWorkflowID(), nil
}

// executeWorkflowDBOS is the DBOS workflow function that wraps registered workflows
func (r *WorkflowRunner) executeWorkflowDBOS(dbosCtx dbos.DBOSContext, req pipeline.ProcessRequest) (*WorkflowResult, error) {
	workflow, ok := r.workflows[req.Job]
	if !ok {
		return failed(ErrWorkflowNotFound), ErrWorkflowNotFound
	}

	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return failed(err), err
	}

	// DBOSContext implements context.Context
	wctx := &WorkflowContext{
		Ctx:     dbosCtx,
		Request: req,
		RunID:   workflowID,
	}

	return workflow.Execute(wctx)
}

// WorkflowStatus represents the status of a workflow execution
type WorkflowStatus struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// GetStatus retrieves the status of a workflow execution from the DBOS
// status table
func (r *WorkflowRunner) GetStatus(ctx context.Context, runID string) (*WorkflowStatus, error) {
	if r.dbosRuntime == nil {
		return nil, ErrRuntimeUnavailable
	}

	info, err := r.dbosRuntime.GetWorkflowStatus(ctx, runID)
	if err != nil {
		if errors.Is(err, dbosruntime.ErrWorkflowNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	return &WorkflowStatus{
		RunID:     info.WorkflowUUID,
		State:     info.Status,
		Name:      info.Name,
		CreatedAt: info.CreatedAt,
		UpdatedAt: info.UpdatedAt,
	}, nil
}

// Jobs returns the registered job names
func (r *WorkflowRunner) Jobs() []string {
	jobs := make([]string, 0, len(r.workflows))
	for job := range r.workflows {
		jobs = append(jobs, job)
	}
	return jobs
}
