// Package runner embeds an OCR worker in another application: it launches
// DBOS, registers the OCR workflow and enqueues runs for it.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-content-ocr/internal/dbosruntime"
	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/internal/storage"
	"github.com/tendant/simple-content-ocr/internal/workflows"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/ocr/tesseract"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

// Config holds the configuration for initializing the OCR runner
type Config struct {
	DatabaseURL        string // DBOS PostgreSQL connection string
	AppName            string // Application name for DBOS
	QueueName          string // DBOS queue name
	Concurrency        int    // Number of concurrent workers
	ContentAPIURL      string // URL of the content API server
	ApplicationVersion string // Optional: Override binary hash for version matching
	TessdataPrefix     string // Optional: directory holding traineddata files

	// OCR overrides the pipeline configuration. Zero value means ocr.DefaultConfig.
	OCR ocr.Config

	// Recognizer overrides the Tesseract engine
	Recognizer ocr.Recognizer
	Logger     logging.Logger
}

func (c Config) pipelineConfig() ocr.Config {
	if len(c.OCR.Languages) == 0 {
		return ocr.DefaultConfig()
	}
	return c.OCR
}

func (c Config) recognizer() ocr.Recognizer {
	if c.Recognizer != nil {
		return c.Recognizer
	}
	return tesseract.New(tesseract.WithTessdataPrefix(c.TessdataPrefix))
}

// Runner provides a high-level API for running OCR workflows via DBOS
type Runner struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// New creates and initializes a new OCR runner with DBOS integration
func New(cfg Config) (*Runner, error) {
	ocrConfig := cfg.pipelineConfig()
	if err := ocrConfig.Validate(); err != nil {
		return nil, err
	}
	if cfg.ContentAPIURL == "" {
		return nil, fmt.Errorf("content API URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default
	}

	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	contentReader := storage.NewHTTPContentReader(cfg.ContentAPIURL)
	derivedWriter := storage.NewHTTPDerivedWriter(cfg.ContentAPIURL)

	p := ocr.NewPipeline(cfg.recognizer(), ocr.WithConfig(ocrConfig), ocr.WithLogger(logger))
	workflowRunner.Register(pipeline.JobOCR, workflows.NewOCRWorkflow(contentReader, derivedWriter, p, logger))

	// Launch DBOS (must be after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Runner{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// RunOCR triggers an OCR workflow for contentID
func (r *Runner) RunOCR(ctx context.Context, contentID string) (string, error) {
	return r.runner.RunAsync(ctx, pipeline.NewOCRRequest(contentID))
}

// RunOCRWithLanguages triggers an OCR workflow with a language pair such as
// "hin:Hindi,eng:English"
func (r *Runner) RunOCRWithLanguages(ctx context.Context, contentID string, languages string) (string, error) {
	if _, err := ocr.ParseLanguages(languages); err != nil {
		return "", err
	}
	req := pipeline.NewOCRRequest(contentID)
	req.Metadata = map[string]string{pipeline.MetaLanguages: languages}
	return r.runner.RunAsync(ctx, req)
}

// RunNamed starts a workflow implemented by another worker, by name
func (r *Runner) RunNamed(ctx context.Context, workflowName string, contentID string) (string, error) {
	return r.runtime.StartWorkflowByName(ctx, workflowName, contentID, nil)
}

// Status returns the state of a run
func (r *Runner) Status(ctx context.Context, runID string) (*workflows.WorkflowStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.runtime != nil {
		r.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}
