package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
)

// DefaultTimeout is the stage timeout used when none is given.
const DefaultTimeout = 300 * time.Second

// Handler is the work of one stage. It receives the value produced by the
// previous stage and returns the value for the next one. A handler must
// stop when ctx is cancelled; its result is discarded after a timeout.
type Handler[T any] func(ctx context.Context, in T) (T, error)

// StageOptions controls how a stage runs.
type StageOptions struct {
	Timeout time.Duration
	// NoSnapshot marks a stage whose work is not committed afterwards.
	NoSnapshot bool
}

// StageOption configures a stage.
type StageOption func(*StageOptions)

// WithTimeout sets the stage timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) StageOption {
	return func(o *StageOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithNoSnapshot marks the stage as not producing a snapshot.
func WithNoSnapshot() StageOption {
	return func(o *StageOptions) {
		o.NoSnapshot = true
	}
}

// Stage is a named handler registered on a Pipeline.
type Stage[T any] struct {
	Name    string
	Handler Handler[T]
	Options StageOptions
}

// StageError reports the first stage failure of a run.
type StageError struct {
	Pipeline    string
	Stage       string
	StageNumber int
	// Elapsed is the run time from pipeline start to the failure.
	Elapsed time.Duration
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s) failed after %s: %v", e.StageNumber, e.Stage, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode returns the cause's exit code, or the generic stage failure code.
func (e *StageError) ExitCode() int {
	if code := herrors.GetExitCode(e.Err); code != herrors.ExitGeneralError {
		return code
	}
	return herrors.ExitStageFailed
}

// IsTimeout reports whether err was caused by a stage timeout.
func IsTimeout(err error) bool {
	var he *herrors.HabitatError
	for err != nil {
		if !errors.As(err, &he) {
			return false
		}
		if he.Code == herrors.ExitStageTimeout {
			return true
		}
		err = he.Cause
	}
	return false
}
