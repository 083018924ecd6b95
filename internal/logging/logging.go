package logging

import (
	"io"
	"log/slog"
	"os"
)

var (
	// Logger is the global structured logger
	Logger *slog.Logger

	// Verbose enables info and debug logging
	Verbose bool
)

func init() {
	Logger = newLogger(os.Stderr, false, slog.LevelWarn)
}

// Setup configures the logger. Without verbose only warnings and errors
// are logged; user-facing messages go through the User* helpers instead.
func Setup(verbose bool, jsonOutput bool, w io.Writer) {
	Verbose = verbose

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	if w == nil {
		w = os.Stderr
	}
	Logger = newLogger(w, jsonOutput, level)
}

func newLogger(w io.Writer, jsonOutput bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

// ForBuild returns a logger tagging every record with the habitat and the
// build run ID.
func ForBuild(habitat, runID string) *slog.Logger {
	return With("habitat", habitat, "run", runID)
}
