// Package errors provides centralized error definitions and error handling utilities
// for buildagent. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - APIError: a backend call returned a non-success status or failed in transport
//   - ExecutionError: errors raised by the simulated execution engine
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewAPIError("create project", http.MethodPost, "/api/projects/", 500)
//	if errors.IsRetryable(err) { ... }
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Backend sentinel errors
var (
	// ErrProjectNotFound indicates the backend has no project with the given id.
	ErrProjectNotFound = New("project not found")
	// ErrBackendUnavailable indicates the backend could not be reached.
	ErrBackendUnavailable = New("backend unavailable")
	// ErrUnexpectedResponse indicates the backend replied with a body that could not be decoded.
	ErrUnexpectedResponse = New("unexpected backend response")
)

// Execution sentinel errors
var (
	// ErrRunInProgress indicates a start request while a run is already active.
	ErrRunInProgress = New("execution already running")
	// ErrRunNotActive indicates a pause, resume or stop request without an active run.
	ErrRunNotActive = New("execution is not running")
	// ErrNoPendingTasks indicates there is nothing to schedule.
	ErrNoPendingTasks = New("no pending tasks")
	// ErrInvalidCommand indicates an execution command other than play, pause or stop.
	ErrInvalidCommand = New("invalid execution command")
	// ErrStartRejected indicates the backend refused to start execution.
	ErrStartRejected = New("backend rejected execution start")
)

// Question bank sentinel errors
var (
	// ErrBankUnreadable indicates the question bank resource could not be read.
	ErrBankUnreadable = New("question bank unreadable")
	// ErrUnknownQuestion indicates an answer operation referenced an unknown question id.
	ErrUnknownQuestion = New("unknown question")
	// ErrInvalidOption indicates an option label outside the question's options.
	ErrInvalidOption = New("invalid option")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// AgentError is the base interface for all buildagent errors.
type AgentError interface {
	error
	// Unwrap returns the underlying error, if any.
	Unwrap() error
	// Is reports whether this error matches the target error.
	Is(target error) bool
	// Severity returns the severity level of this error.
	Severity() Severity
	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// APIError represents a failed call to the workflow backend.
//
// Example:
//
//	err := errors.NewAPIError("get tasks", "GET", "/api/tasks/7", 404)
//	fmt.Println(err) // "api error [GET /api/tasks/7, status=404]: failed to get tasks"
type APIError struct {
	baseError
	Op         string
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

// NewAPIError creates an APIError for a completed request with a non-success
// status. Server errors and 429 are marked retryable; 404 wraps ErrProjectNotFound
// when the path is a project resource.
func NewAPIError(op, method, path string, status int) *APIError {
	e := &APIError{
		baseError: baseError{
			message:    "failed to " + op,
			severity:   SeverityError,
			retryable:  status >= 500 || status == http.StatusTooManyRequests,
			userFacing: true,
		},
		Op:         op,
		Method:     method,
		Path:       path,
		StatusCode: status,
	}
	if status == http.StatusNotFound && strings.HasPrefix(path, "/api/projects/") {
		e.cause = ErrProjectNotFound
	}
	return e
}

// NewTransportError creates an APIError for a request that never produced a
// response (connection refused, timeout, canceled context).
func NewTransportError(op, method, path string, cause error) *APIError {
	return &APIError{
		baseError: baseError{
			message:    "failed to " + op,
			cause:      Join(ErrBackendUnavailable, cause),
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
		Op:     op,
		Method: method,
		Path:   path,
	}
}

// WithDetail attaches the backend's error detail text.
func (e *APIError) WithDetail(detail string) *APIError {
	e.Detail = detail
	return e
}

// WithCause sets the underlying cause.
func (e *APIError) WithCause(cause error) *APIError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *APIError) Error() string {
	var parts []string
	if e.Method != "" || e.Path != "" {
		parts = append(parts, strings.TrimSpace(e.Method+" "+e.Path))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	prefix := "api error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("api error [%s]", strings.Join(parts, ", "))
	}
	msg := e.message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *APIError) Is(target error) bool {
	if _, ok := target.(*APIError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ExecutionError represents errors raised by the execution engine.
//
// Example:
//
//	err := errors.NewExecutionError("cannot pause", errors.ErrRunNotActive).WithRunID(id)
type ExecutionError struct {
	baseError
	RunID  string
	TaskID int
}

// NewExecutionError creates a new ExecutionError.
func NewExecutionError(message string, cause error) *ExecutionError {
	return &ExecutionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithRunID adds a run ID to the error context.
func (e *ExecutionError) WithRunID(id string) *ExecutionError {
	e.RunID = id
	return e
}

// WithTaskID adds a task ID to the error context.
func (e *ExecutionError) WithTaskID(id int) *ExecutionError {
	e.TaskID = id
	return e
}

// WithSeverity sets the error severity.
func (e *ExecutionError) WithSeverity(s Severity) *ExecutionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ExecutionError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.TaskID != 0 {
		parts = append(parts, fmt.Sprintf("task=%d", e.TaskID))
	}
	prefix := "execution error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("execution error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ExecutionError) Is(target error) bool {
	if _, ok := target.(*ExecutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("question", "q7")
//	fmt.Println(err) // "question 'q7' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("project id must be positive").WithField("project").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.IsRetryable()
	}
	return Is(err, ErrBackendUnavailable)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity of an error. Errors that do not carry a
// severity are treated as SeverityError; canceled operations are SeverityInfo.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.Severity()
	}
	if Is(err, ErrCanceled) {
		return SeverityInfo
	}
	return SeverityError
}

// UserMessage returns a message suitable for a transient notification. Internal
// errors collapse to a generic text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsUserFacing(err) {
		var apiErr *APIError
		if As(err, &apiErr) {
			msg := strings.ToUpper(apiErr.message[:1]) + apiErr.message[1:]
			if apiErr.Detail != "" {
				msg += ": " + apiErr.Detail
			}
			return msg
		}
		return err.Error()
	}
	return "An internal error occurred"
}
