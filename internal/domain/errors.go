package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnsupportedReportType = errors.New("unsupported report type")
	ErrValidationFailed      = errors.New("validation failed")
	ErrRemoteUnavailable     = errors.New("remote ai endpoint unavailable")
	ErrParseFailure          = errors.New("unable to parse ai response")
	ErrAIUnavailable         = errors.New("ai service unavailable")
	ErrUnknownStrategy       = errors.New("unknown ai strategy")
	ErrUnsupportedFormat     = errors.New("unsupported export format")
	ErrExportNotFound        = errors.New("export job not found")
	ErrScheduleNotFound      = errors.New("report schedule not found")
)

// ValidationError carries every problem found while validating a definition.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return ErrValidationFailed.Error() + ": " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError returns nil when errs is empty.
func NewValidationError(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: append([]string(nil), errs...)}
}
