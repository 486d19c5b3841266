package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-content-ocr/internal/config"
	"github.com/tendant/simple-content-ocr/internal/dbosruntime"
	"github.com/tendant/simple-content-ocr/internal/dedupe"
	"github.com/tendant/simple-content-ocr/internal/handlers"
	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/internal/metrics"
	"github.com/tendant/simple-content-ocr/internal/storage"
	"github.com/tendant/simple-content-ocr/internal/workflows"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/ocr/tesseract"
	"github.com/tendant/simple-content-ocr/pkg/pipeline"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	config.LoadDotEnv()

	logger := logging.New(os.Stderr)
	defer logger.Sync()

	cfg, err := config.Load(":8081")
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	contentReader, derivedWriter, cleanup, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	engine := tesseract.New(tesseract.WithTessdataPrefix(cfg.TessdataPrefix))
	ocrPipeline := ocr.NewPipeline(engine,
		ocr.WithConfig(cfg.OCR),
		ocr.WithLogger(logger),
		ocr.WithObserver(recorder),
	)
	logger.Infof("Tesseract %s, languages: %v, psm: %d", tesseract.Version(), cfg.OCR.LanguageCodes(), cfg.OCR.Mode.PageSegMode)

	// DBOS is required for the async endpoints
	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            "ocr-worker",
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize DBOS: %v", err)
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)
	ocrWorkflow := workflows.NewOCRWorkflow(contentReader, derivedWriter, ocrPipeline, logger)
	workflowRunner.Register(pipeline.JobOCR, ocrWorkflow)
	logger.Infof("Registered workflow: %s for job: %s", ocrWorkflow.Name(), pipeline.JobOCR)

	// Launch DBOS (must be done after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		logger.Fatalf("Failed to launch DBOS: %v", err)
	}
	defer dbosRuntime.Shutdown(10 * time.Second)

	logger.Infof("DBOS runtime initialized, queue: %s, concurrency: %d", dbosRuntime.QueueName(), dbosRuntime.Concurrency())

	tracker, err := dedupe.NewTracker(context.Background(), dbosRuntime.DB(), logger)
	if err != nil {
		logger.Fatalf("Failed to initialize dedupe ledger: %v", err)
	}

	asyncHandler := handlers.NewAsyncHandler(workflowRunner,
		handlers.WithDedupe(tracker),
		handlers.WithRemoteWorkflows(dbosRuntime),
		handlers.WithAsyncLogger(logger),
	)
	recognizeHandler := handlers.NewRecognizeHandler(ocrPipeline, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{"dbos": dbosRuntime})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/process", asyncHandler.HandleProcessAsync)
	mux.HandleFunc("/v1/runs/", asyncHandler.HandleStatus)
	mux.HandleFunc("/v1/recognize", recognizeHandler.HandleRecognize)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("OCR worker starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
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

// openStorage builds the content reader and derived writer for the
// configured backend
func openStorage(cfg *config.Config, logger logging.Logger) (workflows.ContentReader, workflows.DerivedWriter, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendHTTP:
		logger.Infof("Using simple-content HTTP API at: %s", cfg.ContentAPIURL)
		return storage.NewHTTPContentReader(cfg.ContentAPIURL), storage.NewHTTPDerivedWriter(cfg.ContentAPIURL), func() {}, nil
	case config.BackendFilesystem:
		logger.Infof("Using filesystem storage at: %s", cfg.StorageDir)
		fs, err := storage.NewFilesystemStorage(cfg.StorageDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return fs, fs, func() {}, nil
	default:
		logger.Infof("Using embedded simple-content service (development preset, storage: %s)", cfg.StorageDir)
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(cfg.StorageDir))
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewContentReader(svc), storage.NewDerivedWriter(svc), cleanup, nil
	}
}
