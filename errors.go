package metaclaude

import (
	"errors"
	"fmt"
)

// Standard errors returned by the execution engine.
var (
	ErrTimeoutExceeded     = errors.New("execution timed out")
	ErrCancelled           = errors.New("execution cancelled")
	ErrEngineUnavailable   = errors.New("container engine unavailable")
	ErrUnclassifiedFailure = errors.New("fatal marker without detail")
	ErrWorkspaceExists     = errors.New("workspace directory already exists")
	ErrInvalidTimeout      = errors.New("invalid timeout specification")
	ErrEmptyIdea           = errors.New("project idea cannot be empty")
	ErrExecutionAlreadyRun = errors.New("orchestrator already executed")
	ErrContainerNotRunning = errors.New("container is not running")
)

// Category classifies a run error for callers that need to branch on the
// failure source rather than the message.
type Category string

const (
	CategoryFilesystem   Category = "filesystem"
	CategoryBuild        Category = "build"
	CategoryRuntime      Category = "runtime"
	CategoryStream       Category = "stream"
	CategoryTimeout      Category = "timeout"
	CategoryCancelled    Category = "cancelled"
	CategoryValidation   Category = "validation"
	CategoryUnclassified Category = "unclassified"
)

// RunError is the error surface every component reports through. It carries
// the failure category, a human-readable message, a recovery hint for the
// operator, and the underlying cause.
type RunError struct {
	Category Category
	Message  string
	Hint     string
	Err      error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Default recovery hints per category, reported when a component does not
// supply a more specific one.
var defaultHints = map[Category]string{
	CategoryFilesystem:   "check the output directory exists and is writable",
	CategoryBuild:        "inspect the image build log; retry with --no-cache to rebuild from scratch",
	CategoryRuntime:      "ensure the Docker daemon is running and reachable (try 'docker info')",
	CategoryStream:       "the container log stream was interrupted; check daemon health and retry",
	CategoryTimeout:      "increase the timeout with --timeout or use 'unlimited' for complex projects",
	CategoryCancelled:    "the run was interrupted; partial results may remain in the workspace",
	CategoryValidation:   "check the input parameters; see --help for accepted formats",
	CategoryUnclassified: "run with --verbose and inspect the captured log tail",
}

// newRunError builds a RunError with the category's default hint.
func newRunError(cat Category, message string, cause error) *RunError {
	return &RunError{
		Category: cat,
		Message:  message,
		Hint:     defaultHints[cat],
		Err:      cause,
	}
}

// AsRunError extracts a *RunError from err's chain. Errors that did not
// originate in a component are wrapped as unclassified so the category and
// hint are never lost in propagation.
func AsRunError(err error) *RunError {
	if err == nil {
		return nil
	}
	var re *RunError
	if errors.As(err, &re) {
		return re
	}
	return newRunError(CategoryUnclassified, err.Error(), err)
}
