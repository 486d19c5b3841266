package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-content-ocr/internal/dbosruntime"
	"github.com/tendant/simple-content-ocr/internal/workflows"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// Client enqueues OCR workflows without executing them. Workers must be
// running separately against the same database and queue.
type Client struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// NewClient creates a client that can start workflows but doesn't execute them
func NewClient(cfg Config) (*Client, error) {
	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	// Client mode: the OCR job runs on workers
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)
	workflowRunner.RegisterRemote(pipeline.JobOCR)

	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Client{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// RunOCR enqueues an OCR workflow for workers to execute
func (c *Client) RunOCR(ctx context.Context, contentID string) (string, error) {
	return c.runner.RunAsync(ctx, pipeline.NewOCRRequest(contentID))
}

// Status returns the state of a run
func (c *Client) Status(ctx context.Context, runID string) (*workflows.WorkflowStatus, error) {
	return c.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the client
func (c *Client) Shutdown(timeoutSeconds int) {
	if c.runtime != nil {
		c.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}
