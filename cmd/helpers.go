package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitmage/claude-habitat-sub001/internal/app"
	"github.com/bitmage/claude-habitat-sub001/internal/build"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
)

// getBuilder returns a builder wired to the default app.
func getBuilder() (*build.Builder, error) {
	return app.Default.Builder()
}

// loadHabitat loads a habitat definition through the default app.
func loadHabitat(path string) (*config.Habitat, error) {
	return app.Default.LoadHabitat(path)
}

// commandContext returns the command context, or a background context
// when the command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// validateName checks a habitat name given on the command line.
func validateName(name string) error {
	if err := config.ValidateHabitatName(name); err != nil {
		return errors.Validation("%v", err)
	}
	return nil
}

// phaseByNumber returns the catalog phase with the given 1-based ID.
func phaseByNumber(n int) (phase.Phase, error) {
	if n < 1 || n > len(config.PhaseNames) {
		return phase.Phase{}, errors.Validation("phase must be between 1 and %d (%s)", len(config.PhaseNames), strings.Join(config.PhaseNames, ", "))
	}
	return phase.Phase{ID: n, Name: config.PhaseNames[n-1]}, nil
}

// shortHash abbreviates a phase hash for display.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func phaseLabel(p phase.Phase) string {
	return fmt.Sprintf("%d-%s", p.ID, p.Name)
}
