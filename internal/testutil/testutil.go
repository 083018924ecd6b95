package testutil

import (
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitmage/claude-habitat-sub001/internal/app"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// TestEnv holds the test environment
type TestEnv struct {
	T        *testing.T
	Paths    *config.Paths
	Settings *config.Settings
	Engine   *engine.Mock
	FS       *system.MockFS
	App      *app.App
	cleanup  func()
}

// NewTestEnv creates a new test environment with a mock engine and an
// in-memory filesystem, and installs it as the default app.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	paths := &config.Paths{ConfigDir: "/config"}
	paths.SetStateDir("/state")

	settings := config.DefaultSettings()
	settings.StageTimeout = time.Minute

	mockEngine := engine.NewMock()
	mockFS := system.NewMockFS()

	testApp := app.New(
		app.WithPaths(paths),
		app.WithSettings(settings),
		app.WithEngine(mockEngine),
		app.WithFileSystem(mockFS),
	)

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	env := &TestEnv{
		T:        t,
		Paths:    paths,
		Settings: settings,
		Engine:   mockEngine,
		FS:       mockFS,
		App:      testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
	t.Cleanup(env.Cleanup)

	return env
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// AddHabitat writes a habitat definition to habitatPath.
func (e *TestEnv) AddHabitat(habitatPath, content string) {
	e.T.Helper()
	e.FS.AddFile(habitatPath, []byte(content), 0644)
}

// AddHabitatFixture copies a habitat fixture to habitatPath.
func (e *TestEnv) AddHabitatFixture(habitatPath, fixture string) {
	e.T.Helper()

	data, err := LoadFixture(fixture)
	require.NoError(e.T, err, "load fixture %s", fixture)
	e.FS.AddFile(habitatPath, data, 0644)
}

// AddFile adds a file next to a habitat definition.
func (e *TestEnv) AddFile(habitatPath, rel string, content string) {
	e.T.Helper()
	e.FS.AddFile(path.Join(path.Dir(habitatPath), rel), []byte(content), 0644)
}

// Lock simulates another build holding the habitat lock.
func (e *TestEnv) Lock(habitat string) {
	e.T.Helper()
	e.FS.AddFile(path.Join(e.Paths.LocksDir, habitat+".lock"), []byte("other 1\n"), 0644)
}
