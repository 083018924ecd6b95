package errors

import (
	"errors"
	"fmt"
	"time"
)

// Exit codes for habitat
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitValidation     = 2
	ExitConfigError    = 3
	ExitEngineFailed   = 4
	ExitSnapshotFailed = 5
	ExitStageFailed    = 6
	ExitStageTimeout   = 7
	ExitHabitatLocked  = 8
)

// HabitatError is the base error type for habitat
type HabitatError struct {
	Code    int
	Message string
	Cause   error
}

func (e *HabitatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HabitatError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *HabitatError) ExitCode() int {
	return e.Code
}

// New creates a new HabitatError
func New(code int, message string) *HabitatError {
	return &HabitatError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a HabitatError
func Wrap(code int, message string, cause error) *HabitatError {
	return &HabitatError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation returns an error for a missing or malformed argument.
func Validation(format string, args ...any) *HabitatError {
	return New(ExitValidation, fmt.Sprintf(format, args...))
}

// SnapshotCreation returns an error for a failed snapshot commit.
func SnapshotCreation(tag string, cause error) *HabitatError {
	return Wrap(ExitSnapshotFailed, fmt.Sprintf("failed to create snapshot %s", tag), cause)
}

// EngineFailed returns an error for a container engine call that failed
// for a reason other than a missing image.
func EngineFailed(op string, cause error) *HabitatError {
	return Wrap(ExitEngineFailed, fmt.Sprintf("engine %s failed", op), cause)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *HabitatError {
	return Wrap(ExitConfigError, message, cause)
}

// Locked returns an error when another build holds the habitat lock.
func Locked(habitat string) *HabitatError {
	return New(ExitHabitatLocked, fmt.Sprintf("habitat %s is already being built", habitat))
}

// StageTimeout returns an error for a stage that exceeded its timeout.
func StageTimeout(stage string, timeout time.Duration) *HabitatError {
	return New(ExitStageTimeout, fmt.Sprintf("stage %s timed out after %s", stage, timeout))
}

// exitCoder is implemented by errors that carry their own exit code.
type exitCoder interface {
	ExitCode() int
}

// GetExitCode extracts the exit code from an error.
// The outermost error in the chain that reports an exit code wins.
func GetExitCode(err error) int {
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
