// Package errors provides typed errors with exit codes for habitat.
//
// # Error Types
//
// HabitatError is the base error type that wraps an error with an exit code:
//
//	type HabitatError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess        = 0  // Success
//	ExitGeneralError   = 1  // General/unknown errors
//	ExitValidation     = 2  // Missing or malformed argument
//	ExitConfigError    = 3  // Habitat or settings file problem
//	ExitEngineFailed   = 4  // Container engine call failed
//	ExitSnapshotFailed = 5  // Snapshot commit failed
//	ExitStageFailed    = 6  // A build stage failed
//	ExitStageTimeout   = 7  // A build stage timed out
//	ExitHabitatLocked  = 8  // Another build holds the habitat lock
//
// "Not found" is deliberately absent: snapshot and image absence is a
// normal outcome reported as a nil value, never as an error.
//
// # Extracting Exit Codes
//
// GetExitCode walks the error chain for anything exposing ExitCode() int,
// so pipeline stage errors and HabitatError values are both honored:
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
