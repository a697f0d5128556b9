package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors
type ErrorCode string

const (
	ErrCodeProcessing ErrorCode = "PROCESSING_ERROR"
	ErrCodeFFmpeg     ErrorCode = "FFMPEG_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeIO         ErrorCode = "IO_ERROR"
	ErrCodeTransition ErrorCode = "TRANSITION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
)

// ClipError is the base structured error
type ClipError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ClipError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ClipError) Unwrap() error {
	return e.Cause
}

// ProcessingError represents a failure inside one stage of an export or edit.
type ProcessingError struct {
	ClipError
	Stage string
}

func NewProcessingError(stage, message string, cause error) *ProcessingError {
	return &ProcessingError{
		ClipError: ClipError{
			Code:    ErrCodeProcessing,
			Message: message,
			Cause:   cause,
		},
		Stage: stage,
	}
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s (stage=%s)", e.ClipError.Error(), e.Stage)
}

// FFmpegError represents an FFmpeg execution failure
type FFmpegError struct {
	ClipError
	Args     []string
	ExitCode int
	Stderr   string
}

func NewFFmpegError(message string, args []string, exitCode int, stderr string, cause error) *FFmpegError {
	return &FFmpegError{
		ClipError: ClipError{
			Code:    ErrCodeFFmpeg,
			Message: message,
			Cause:   cause,
		},
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("[%s] %s (exit=%d, stderr=%q): %v",
		e.Code, e.Message, e.ExitCode, truncate(lastLine(e.Stderr), 200), e.Cause)
}

// ValidationError represents input validation failure
type ValidationError struct {
	ClipError
	Field string
	Value any
}

func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		ClipError: ClipError{
			Code:    ErrCodeValidation,
			Message: message,
		},
		Field: field,
		Value: value,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// IOError is a filesystem failure on a clip file.
type IOError struct {
	ClipError
	Op   string
	Path string
}

func NewIOError(op, path string, cause error) *IOError {
	return &IOError{
		ClipError: ClipError{
			Code:    ErrCodeIO,
			Message: op + " failed",
			Cause:   cause,
		},
		Op:   op,
		Path: path,
	}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %v", e.Code, e.Op, e.Path, e.Cause)
}

// TransitionError is returned when a state change is not allowed from the
// current state.
type TransitionError struct {
	ClipError
	From  string
	Event string
}

func NewTransitionError(from, event, message string) *TransitionError {
	return &TransitionError{
		ClipError: ClipError{
			Code:    ErrCodeTransition,
			Message: message,
		},
		From:  from,
		Event: event,
	}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("[%s] %s (from=%s, event=%s)", e.Code, e.Message, e.From, e.Event)
}

// NotFoundError marks a missing clip or record.
type NotFoundError struct {
	ClipError
	ID string
}

func NewNotFoundError(kind, id string, cause error) *NotFoundError {
	return &NotFoundError{
		ClipError: ClipError{
			Code:    ErrCodeNotFound,
			Message: kind + " not found",
			Cause:   cause,
		},
		ID: id,
	}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.ID)
}

// Is enables errors.Is checks
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As enables errors.As checks
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

// CodeOf returns the code of the first structured error in err's chain, or an
// empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := As[*ValidationError](err); ok {
		return e.Code
	}
	if e, ok := As[*TransitionError](err); ok {
		return e.Code
	}
	if e, ok := As[*NotFoundError](err); ok {
		return e.Code
	}
	if e, ok := As[*FFmpegError](err); ok {
		return e.Code
	}
	if e, ok := As[*IOError](err); ok {
		return e.Code
	}
	if e, ok := As[*ProcessingError](err); ok {
		return e.Code
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// lastLine keeps the last non-empty stderr line; ffmpeg prints the cause last.
func lastLine(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == '\n' || s[end-1] == '\r' || s[end-1] == ' ') {
		end--
	}
	start := end
	for start > 0 && s[start-1] != '\n' {
		start--
	}
	return s[start:end]
}
