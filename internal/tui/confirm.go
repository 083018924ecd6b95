package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question and returns the answer.
func Confirm(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	return confirmed, nil
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// ShouldPrompt reports whether prompts and live views may be shown.
// They are disabled in CI and when stdin or stdout is not a terminal.
func ShouldPrompt() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if os.Getenv(v) != "" {
			return false
		}
	}
	return IsInteractive(os.Stdin) && IsInteractive(os.Stdout)
}
