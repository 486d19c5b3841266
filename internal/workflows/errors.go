package workflows

import "errors"

var (
	// ErrWorkflowNotFound is returned when a workflow is not registered
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidRequest is returned when the request is invalid
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrRuntimeUnavailable is returned by async operations without a DBOS runtime
	ErrRuntimeUnavailable = errors.New("DBOS runtime not initialized")

	// ErrRunNotFound is returned when a run id is unknown to the runtime
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrContentNotFound is returned when the source content does not exist
	ErrContentNotFound = errors.New("source content not found")
)
