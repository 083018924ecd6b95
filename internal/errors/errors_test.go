package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHabitatError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *HabitatError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestHabitatError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ExitGeneralError, "wrapped", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.Nil(t, New(ExitGeneralError, "no cause").Unwrap())
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("boom")

	tests := []struct {
		name     string
		err      *HabitatError
		wantCode int
		wantMsg  string
	}{
		{"validation", Validation("tag is required"), ExitValidation, "tag is required"},
		{"snapshot creation", SnapshotCreation("habitat-x:1-base", cause), ExitSnapshotFailed, "failed to create snapshot habitat-x:1-base: boom"},
		{"engine failed", EngineFailed("commit", cause), ExitEngineFailed, "engine commit failed: boom"},
		{"config", ConfigError("bad habitat file", cause), ExitConfigError, "bad habitat file: boom"},
		{"locked", Locked("x"), ExitHabitatLocked, "habitat x is already being built"},
		{"stage timeout", StageTimeout("users", 50*time.Millisecond), ExitStageTimeout, "stage users timed out after 50ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

type codedErr struct{ code int }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) ExitCode() int { return e.code }

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"HabitatError", Validation("x"), ExitValidation},
		{"wrapped HabitatError", fmt.Errorf("outer: %w", Locked("x")), ExitHabitatLocked},
		{"foreign exit coder", fmt.Errorf("outer: %w", codedErr{code: 42}), 42},
		{"regular error", fmt.Errorf("some error"), ExitGeneralError},
		{"nil error", nil, ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, GetExitCode(tt.err))
		})
	}
}

func TestErrorChaining(t *testing.T) {
	root := fmt.Errorf("root cause")
	middle := Wrap(ExitConfigError, "config error", root)
	outer := fmt.Errorf("operation failed: %w", middle)

	assert.True(t, Is(outer, root))

	var habitatErr *HabitatError
	require.True(t, As(outer, &habitatErr))
	assert.Equal(t, ExitConfigError, habitatErr.Code)
}
