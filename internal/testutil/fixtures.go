package testutil

import (
	"embed"

	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadHabitatFixture parses a habitat fixture.
func LoadHabitatFixture(name string) (*config.Habitat, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return config.Parse(data)
}

// ValidHabitat returns the valid habitat fixture.
func ValidHabitat() (*config.Habitat, error) {
	return LoadHabitatFixture("valid_habitat.yaml")
}

// InvalidHabitat returns the error of parsing the invalid habitat fixture.
func InvalidHabitat() error {
	_, err := LoadHabitatFixture("invalid_habitat.yaml")
	return err
}

// ValidSettings loads the valid settings fixture.
func ValidSettings() (*config.Settings, error) {
	data, err := LoadFixture("valid_settings.toml")
	if err != nil {
		return nil, err
	}
	mockFS := system.NewMockFS()
	mockFS.AddFile("/config/"+config.SettingsFile, data, 0644)
	return config.LoadSettings(mockFS, "/config")
}
