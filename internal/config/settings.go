package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// SettingsFile is the settings file name inside the config directory.
const SettingsFile = "settings.toml"

// Settings are host-level preferences loaded from settings.toml.
type Settings struct {
	// Engine is auto, docker or podman.
	Engine string `toml:"engine"`
	// StageTimeout applies to phases without their own timeout.
	StageTimeout time.Duration `toml:"stage_timeout"`
	// KeepFailed commits a fail snapshot when a phase fails.
	KeepFailed bool `toml:"keep_failed"`
	// StateDir overrides where history and locks are kept.
	StateDir string `toml:"state_dir"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		Engine:       "auto",
		StageTimeout: 5 * time.Minute,
	}
}

// Validate checks that the Settings are valid.
func (s *Settings) Validate() error {
	switch s.Engine {
	case "auto", "docker", "podman":
	default:
		return fmt.Errorf("invalid engine: %s (must be auto, docker, or podman)", s.Engine)
	}

	if s.StageTimeout < 0 {
		return fmt.Errorf("stage_timeout must not be negative")
	}

	if s.StateDir != "" && !filepath.IsAbs(s.StateDir) {
		return fmt.Errorf("state_dir must be an absolute path (got %q)", s.StateDir)
	}

	return nil
}

// LoadSettings reads settings.toml from configDir. A missing file yields
// the defaults; keys not in the file keep their default values.
func LoadSettings(fsys system.FileSystem, configDir string) (*Settings, error) {
	if fsys == nil {
		fsys = system.DefaultFS()
	}

	settings := DefaultSettings()
	settingsPath := filepath.Join(configDir, SettingsFile)

	data, err := fsys.ReadFile(settingsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, herrors.ConfigError("failed to read settings", err)
	}

	md, err := toml.Decode(string(data), settings)
	if err != nil {
		return nil, herrors.ConfigError("failed to parse settings", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, herrors.ConfigError(fmt.Sprintf("unknown settings: %s", strings.Join(keys, ", ")), nil)
	}

	if err := settings.Validate(); err != nil {
		return nil, herrors.ConfigError("invalid settings", err)
	}

	return settings, nil
}
