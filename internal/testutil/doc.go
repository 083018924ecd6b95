// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/valid_habitat.yaml
//	fixtures/invalid_habitat.yaml
//	fixtures/valid_settings.toml
//
// Helper functions load and parse them into typed config objects:
//
//	h, err := testutil.ValidHabitat()
//	err := testutil.InvalidHabitat()
//	s, err := testutil.ValidSettings()
//
// # Test Environment
//
// NewTestEnv installs an app backed by engine.Mock and system.MockFS as
// app.Default, for command tests:
//
//	env := testutil.NewTestEnv(t)
//	env.AddHabitatFixture("/habitats/demo/habitat.yaml", "valid_habitat.yaml")
//	// run commands, then inspect env.Engine.Images
package testutil
