package task

import (
	"errors"
	"fmt"
	"time"
)

// Category names the error classes produced by the engine, in retry-decision
// precedence order: timeout > validation > network > execution.
type Category string

const (
	// CategoryValidation marks bad input/output shape or an unknown task.
	// Never retried.
	CategoryValidation Category = "validation_error"
	// CategoryTimeout marks a deadline exceeded. Authoritative over any
	// error raised concurrently during cancellation; never retried.
	CategoryTimeout Category = "timeout_error"
	// CategoryNetwork marks a transient I/O failure. Retried with backoff.
	CategoryNetwork Category = "network_error"
	// CategoryExecution marks an application-level failure in dispatched
	// code or unparseable model output. Retried up to the limit.
	CategoryExecution Category = "execution_error"
)

// ValidationError reports bad input/output shape or an unknown task name.
type ValidationError struct {
	Task    string
	Elapsed time.Duration
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("task %s: validation failed after %s: %s", e.Task, e.Elapsed.Round(time.Millisecond), e.Message)
}

// Unwrap returns the underlying cause for diagnostics.
func (e *ValidationError) Unwrap() error { return e.Cause }

// Category returns CategoryValidation.
func (e *ValidationError) Category() Category { return CategoryValidation }

// TimeoutError reports that a task invocation exceeded its deadline.
type TimeoutError struct {
	Task    string
	Elapsed time.Duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: timed out after %s (limit %s)", e.Task, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// Category returns CategoryTimeout.
func (e *TimeoutError) Category() Category { return CategoryTimeout }

// NetworkError reports a transient I/O failure during dispatch.
type NetworkError struct {
	Task    string
	Elapsed time.Duration
	Cause   error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("task %s: network failure after %s: %v", e.Task, e.Elapsed.Round(time.Millisecond), e.Cause)
}

// Unwrap returns the underlying cause for diagnostics.
func (e *NetworkError) Unwrap() error { return e.Cause }

// Category returns CategoryNetwork.
func (e *NetworkError) Category() Category { return CategoryNetwork }

// ExecutionError reports an application-level failure in dispatched code or
// unrecoverable model output.
type ExecutionError struct {
	Task    string
	Elapsed time.Duration
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s: execution failed after %s: %v", e.Task, e.Elapsed.Round(time.Millisecond), e.Cause)
}

// Unwrap returns the underlying cause for diagnostics.
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Category returns CategoryExecution.
func (e *ExecutionError) Category() Category { return CategoryExecution }

// Categorizer is implemented by all engine error types.
type Categorizer interface {
	Category() Category
}

// CategoryOf extracts the category from an engine error, or CategoryExecution
// for untyped errors.
func CategoryOf(err error) Category {
	var c Categorizer
	if errors.As(err, &c) {
		return c.Category()
	}
	return CategoryExecution
}
