package rendering

import (
	"context"
	"errors"
)

// RenderError represents a failure in one stage of the render pipeline
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeEngineLaunch    = "ENGINE_LAUNCH_FAILED"
	ErrCodePageLoad        = "PAGE_LOAD_FAILED"
	ErrCodeOutputDirectory = "OUTPUT_DIRECTORY_FAILED"
	ErrCodeCapture         = "CAPTURE_FAILED"
	ErrCodeInvalidTarget   = "INVALID_TARGET"
	ErrCodeInvalidFileName = "INVALID_FILE_NAME"
	ErrCodeRetention       = "RETENTION_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the RenderError code found in err's chain, or "" if none
func CodeOf(err error) string {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return renderErr.Code
	}
	return ""
}

// IsCode reports whether err carries a RenderError with the given code
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsTimeout reports whether err was caused by a stage deadline
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
