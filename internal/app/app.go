// Package app provides the application context for habitat.
// It allows dependency injection for testing.
package app

import (
	"github.com/bitmage/claude-habitat-sub001/internal/build"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// App holds the application dependencies
type App struct {
	// Paths holds the configured paths
	Paths *config.Paths

	// Settings are the host settings from settings.toml
	Settings *config.Settings

	// Engine is the container engine
	Engine engine.Engine

	// FS is the host filesystem
	FS system.FileSystem

	settingsErr error
	engineErr   error
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithSettings sets custom host settings
func WithSettings(settings *config.Settings) Option {
	return func(a *App) {
		a.Settings = settings
	}
}

// WithEngine sets a custom container engine
func WithEngine(e engine.Engine) Option {
	return func(a *App) {
		a.Engine = e
	}
}

// WithFileSystem sets a custom filesystem
func WithFileSystem(fs system.FileSystem) Option {
	return func(a *App) {
		a.FS = fs
	}
}

// New creates a new App with the given options.
// Settings are loaded from the config directory and the engine is
// auto-detected unless provided. Failures are reported by Builder.
func New(opts ...Option) *App {
	app := &App{}

	for _, opt := range opts {
		opt(app)
	}

	if app.Paths == nil {
		app.Paths = config.DefaultPaths()
	}
	if app.FS == nil {
		app.FS = system.DefaultFS()
	}

	if app.Settings == nil {
		settings, err := config.LoadSettings(app.FS, app.Paths.ConfigDir)
		if err != nil {
			logging.Debug("failed to load settings", "error", err)
			app.settingsErr = err
			settings = config.DefaultSettings()
		}
		app.Settings = settings
	}
	if app.Settings.StateDir != "" {
		app.Paths.SetStateDir(app.Settings.StateDir)
	}

	if app.Engine == nil {
		eng, err := engine.New(engine.Type(app.Settings.Engine), nil)
		if err != nil {
			logging.Debug("failed to initialize engine", "error", err)
			app.engineErr = err
		} else {
			app.Engine = eng
		}
	}

	return app
}

// Builder returns a build.Builder wired to the app's dependencies.
func (a *App) Builder() (*build.Builder, error) {
	if a.settingsErr != nil {
		return nil, a.settingsErr
	}
	if a.Engine == nil {
		return nil, herrors.EngineFailed("detection", a.engineErr)
	}
	return build.NewBuilder(a.Engine, a.Paths, a.Settings, build.WithFileSystem(a.FS)), nil
}

// LoadHabitat reads and validates a habitat file.
func (a *App) LoadHabitat(path string) (*config.Habitat, error) {
	return config.Load(a.FS, path)
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
