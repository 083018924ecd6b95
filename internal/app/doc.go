// Package app provides the application context for habitat.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Paths    *config.Paths       // Config, state, history and lock dirs
//	    Settings *config.Settings    // Host settings (settings.toml)
//	    Engine   engine.Engine       // Container engine
//	    FS       system.FileSystem   // Host filesystem
//	}
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	a := app.New()
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithPaths(testPaths),
//	    app.WithEngine(engine.NewMock()),
//	    app.WithSettings(config.DefaultSettings()),
//	)
//
//	builder, err := a.Builder()
//
// # Available Options
//
//	WithPaths(paths)        // Custom path configuration
//	WithSettings(settings)  // Custom host settings
//	WithEngine(engine)      // Custom container engine
//	WithFileSystem(fs)      // Custom filesystem
package app
