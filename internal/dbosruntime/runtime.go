package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
)

// ErrDatabaseURLRequired is returned when no system database is configured
var ErrDatabaseURLRequired = errors.New("DBOS_SYSTEM_DATABASE_URL is required")

// Runtime manages the DBOS runtime lifecycle
type Runtime struct {
	dbosContext dbos.DBOSContext
	queue       *dbos.WorkflowQueue
	config      Config
	db          *sql.DB
}

// NewRuntime creates a new DBOS runtime instance
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, err
	}

	// OCR runs are CPU bound, so the queue worker count caps concurrent pipelines
	queue := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName, dbos.WithWorkerConcurrency(cfg.Concurrency))

	// Direct connection for status lookups and by-name enqueueing
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		dbosContext: dbosCtx,
		queue:       &queue,
		config:      cfg,
		db:          db,
	}, nil
}

// Launch starts the DBOS runtime and workers
func (r *Runtime) Launch() error {
	return dbos.Launch(r.dbosContext)
}

// Shutdown gracefully shuts down the DBOS runtime
func (r *Runtime) Shutdown(timeout time.Duration) error {
	dbos.Shutdown(r.dbosContext, timeout)
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the system database is reachable
func (r *Runtime) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB returns the system database connection, shared with the dedupe ledger
func (r *Runtime) DB() *sql.DB {
	return r.db
}

// Context returns the DBOS context
func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// QueueName returns the configured queue name
func (r *Runtime) QueueName() string {
	return r.config.QueueName
}

// Concurrency returns the configured concurrency
func (r *Runtime) Concurrency() int {
	return r.config.Concurrency
}
