// Package integration provides a test harness for integration tests
// that build habitats against a real container engine.
//
// Integration tests are skipped unless the HABITAT_INTEGRATION_TESTS
// environment variable is set to 1. These tests require:
//   - docker or podman in PATH
//   - network access to pull the base image
//
// Run with: HABITAT_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
//
// HABITAT_ENGINE selects the engine (docker, podman or auto).
//
// # Test Harness
//
// TestHarness manages test environments:
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//
//	    hab := h.WriteHabitat("demo", integration.DefaultHabitat("demo"))
//	    result := h.Build(hab, build.Options{})
//
//	    // Snapshots are removed via t.Cleanup
//	}
//
// Habitat names are suffixed with the run so parallel runs do not share
// snapshots.
package integration
