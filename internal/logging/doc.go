// Package logging provides logging utilities for habitat.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings.
// Without --verbose only warnings and errors are written:
//
//	logging.Debug("resolving cache", "habitat", name, "phases", len(phases))
//	logging.Warn("failed to record build history", "habitat", name, "error", err)
//
// A build logs through a logger carrying its habitat and run ID:
//
//	log := logging.ForBuild(name, runID)
//	log.Info("build started", "image", image)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Resuming %s from phase %d", name, resume)
//	logging.UserSuccess("Habitat %s built", name)
//	logging.UserWarning("No snapshots found for %s", name)
//	logging.UserError("Build failed: %v", err)
//
// Output destinations default to stdout (info, success) and stderr
// (warning, error); SetUserOutput redirects them.
//
// # Status Indicators
//
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
