package config

import (
	"os"
	"path/filepath"
)

// AppName names the config and state directories.
const AppName = "habitat"

// Paths holds the configured paths
type Paths struct {
	ConfigDir  string
	StateDir   string
	HistoryDir string
	LocksDir   string
}

// DefaultPaths returns the XDG-based path configuration for the current user.
func DefaultPaths() *Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return ResolvePaths(os.Getenv, home)
}

// ResolvePaths builds paths from XDG_CONFIG_HOME and XDG_STATE_HOME,
// falling back to ~/.config and ~/.local/state.
func ResolvePaths(getenv func(string) string, home string) *Paths {
	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	stateHome := getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}

	p := &Paths{ConfigDir: filepath.Join(configHome, AppName)}
	p.SetStateDir(filepath.Join(stateHome, AppName))
	return p
}

// SetStateDir moves the state directory and everything kept under it.
func (p *Paths) SetStateDir(dir string) {
	p.StateDir = dir
	p.HistoryDir = filepath.Join(dir, "history")
	p.LocksDir = filepath.Join(dir, "locks")
}
