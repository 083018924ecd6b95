package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bitmage/claude-habitat-sub001/internal/build"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
)

// BaseImage is the image integration habitats start from.
const BaseImage = "debian:bookworm-slim"

// TestHarness provides utilities for integration testing with a real engine.
type TestHarness struct {
	t        *testing.T
	tempDir  string
	suffix   string
	paths    *config.Paths
	settings *config.Settings
	engine   engine.Engine
	builder  *build.Builder
	habitats []string // Track built habitats for cleanup
}

// NewHarness creates a new test harness.
// It will skip the test if HABITAT_INTEGRATION_TESTS is not set.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv("HABITAT_INTEGRATION_TESTS") != "1" {
		t.Skip("integration tests disabled (set HABITAT_INTEGRATION_TESTS=1 to enable)")
	}

	eng, err := engine.New(engine.Type(os.Getenv("HABITAT_ENGINE")), nil)
	if err != nil {
		t.Skipf("no container engine available: %v", err)
	}

	// Quick check that the engine is responsive
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := eng.ListImages(ctx, "habitat-integration"); err != nil {
		t.Skipf("%s not responsive: %v", eng.Name(), err)
	}

	tempDir := t.TempDir()
	paths := &config.Paths{ConfigDir: filepath.Join(tempDir, "config")}
	paths.SetStateDir(filepath.Join(tempDir, "state"))

	settings := config.DefaultSettings()
	settings.StageTimeout = 5 * time.Minute

	h := &TestHarness{
		t:        t,
		tempDir:  tempDir,
		suffix:   uuid.NewString()[:8],
		paths:    paths,
		settings: settings,
		engine:   eng,
		builder:  build.NewBuilder(eng, paths, settings),
	}
	t.Cleanup(h.cleanup)

	return h
}

// Builder returns the builder under test.
func (h *TestHarness) Builder() *build.Builder {
	return h.builder
}

// Engine returns the container engine.
func (h *TestHarness) Engine() engine.Engine {
	return h.engine
}

// Name returns a habitat name unique to this harness.
func (h *TestHarness) Name(base string) string {
	return fmt.Sprintf("%s-%s", base, h.suffix)
}

// DefaultHabitat returns a small habitat definition exercising every phase
// that does not need network access beyond the base image.
func DefaultHabitat(name string) string {
	return fmt.Sprintf(`name: %s
image: %s
container:
  user: dev
  workdir: /src
env:
  - GREETING=hello
users:
  - name: dev
files:
  - src: motd.txt
    dest: /etc/motd
    mode: "0644"
setup:
  user:
    - echo "$GREETING" > /src/greeting
verify:
  - test -f /src/greeting
  - test -f /etc/motd
`, name, BaseImage)
}

// WriteHabitat writes a habitat definition and its motd.txt into a fresh
// directory and returns the loaded habitat.
func (h *TestHarness) WriteHabitat(name, content string) *config.Habitat {
	h.t.Helper()

	dir := filepath.Join(h.tempDir, "habitats", name)
	require.NoError(h.t, os.MkdirAll(dir, 0755), "create habitat directory")
	require.NoError(h.t, os.WriteFile(filepath.Join(dir, "motd.txt"), []byte("welcome\n"), 0644), "write motd.txt")

	habitatPath := filepath.Join(dir, "habitat.yaml")
	require.NoError(h.t, os.WriteFile(habitatPath, []byte(content), 0644), "write habitat")

	hab, err := config.Load(nil, habitatPath)
	require.NoError(h.t, err, "load habitat")
	h.habitats = append(h.habitats, hab.Name)
	return hab
}

// Build runs a build and fails the test on error.
func (h *TestHarness) Build(hab *config.Habitat, opts build.Options) *build.Result {
	h.t.Helper()

	result, err := h.builder.Build(h.context(), hab, opts)
	require.NoError(h.t, err, "build %s", hab.Name)
	return result
}

func (h *TestHarness) context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	h.t.Cleanup(cancel)
	return ctx
}

// cleanup removes all snapshots of the habitats built by the harness.
func (h *TestHarness) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, name := range h.habitats {
		if _, err := h.builder.Clean(ctx, name, snapshot.RemoveOptions{All: true}); err != nil {
			h.t.Logf("Warning: failed to clean habitat %s: %v", name, err)
		}
	}
}
