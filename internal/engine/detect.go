package engine

import (
	"fmt"
	"os/exec"

	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// Type identifies which container engine to use
type Type string

const (
	TypeDocker Type = "docker"
	TypePodman Type = "podman"
	TypeAuto   Type = "auto"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Detect determines which container engine is available on the system.
// Docker is preferred because snapshot labels and `images` output are
// identical across its versions; podman is the fallback.
func Detect() (Type, error) {
	for _, t := range []Type{TypeDocker, TypePodman} {
		if _, err := lookPath(string(t)); err == nil {
			logging.Info("detected container engine", "engine", t)
			return t, nil
		}
	}
	return "", fmt.Errorf("no supported container engine found (tried: docker, podman)")
}

// New creates an Engine of the given type.
// If t is TypeAuto or empty, it auto-detects the engine.
func New(t Type, executor system.CommandExecutor) (Engine, error) {
	if t == "" || t == TypeAuto {
		detected, err := Detect()
		if err != nil {
			return nil, err
		}
		t = detected
	}

	switch t {
	case TypeDocker, TypePodman:
		if _, err := lookPath(string(t)); err != nil {
			return nil, fmt.Errorf("%s not found in PATH: %w", t, err)
		}
		logging.Debug("creating engine", "type", t)
		return NewDocker(string(t), executor), nil
	default:
		return nil, fmt.Errorf("unknown engine type: %s", t)
	}
}
