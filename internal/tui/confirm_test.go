package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsInteractive_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsInteractive(f), "regular file should not be interactive")
}

func TestIsInteractive_ClosedFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	f.Close()

	assert.False(t, IsInteractive(f), "closed file should not be interactive")
}

func TestShouldPrompt_CI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "BUILDKITE"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv(v, "true")
			assert.False(t, ShouldPrompt())
		})
	}
}
