package dbosruntime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrWorkflowNotFound is returned when the status table has no such workflow
var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowInput represents input to a DBOS workflow started by name
type WorkflowInput struct {
	ContentID string                 `json:"content_id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StartWorkflowByName starts a DBOS workflow by name (language-agnostic).
// Workers in other languages polling the same queue pick it up.
func (r *Runtime) StartWorkflowByName(ctx context.Context, workflowName string, contentID string, metadata map[string]interface{}) (string, error) {
	workflowUUID := fmt.Sprintf("%s-%s-%d", workflowName, contentID, time.Now().UnixNano())

	inputJSON, err := json.Marshal(WorkflowInput{
		ContentID: contentID,
		Metadata:  metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal input: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO dbos.workflow_status (
			workflow_uuid,
			status,
			name,
			request,
			executor_id,
			created_at,
			updated_at,
			application_version,
			application_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx, query,
		workflowUUID,
		"PENDING",
		workflowName,
		string(inputJSON),
		"pending",
		now,
		now,
		r.config.ApplicationVersion,
		r.config.AppName,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert workflow: %w", err)
	}

	queueQuery := `
		INSERT INTO dbos.workflow_queue (
			workflow_uuid,
			queue_name,
			created_at_epoch_ms
		) VALUES ($1, $2, $3)
	`

	if _, err = tx.ExecContext(ctx, queueQuery, workflowUUID, r.config.QueueName, now); err != nil {
		return "", fmt.Errorf("failed to enqueue workflow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit workflow: %w", err)
	}

	return workflowUUID, nil
}

// WorkflowStatusInfo represents the status of a workflow
type WorkflowStatusInfo struct {
	WorkflowUUID string
	Status       string
	Name         string
	CreatedAt    int64
	UpdatedAt    int64
}

// GetWorkflowStatus retrieves the status of a workflow from the DBOS status table
func (r *Runtime) GetWorkflowStatus(ctx context.Context, workflowUUID string) (*WorkflowStatusInfo, error) {
	query := `
		SELECT workflow_uuid, status, name, created_at, updated_at
		FROM dbos.workflow_status
		WHERE workflow_uuid = $1
	`

	var info WorkflowStatusInfo
	err := r.db.QueryRowContext(ctx, query, workflowUUID).Scan(
		&info.WorkflowUUID,
		&info.Status,
		&info.Name,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow status: %w", err)
	}

	return &info, nil
}
