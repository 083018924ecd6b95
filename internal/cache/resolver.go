package cache

import (
	"context"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
)

// Lookup resolves snapshot tags to their labels.
// A nil Info with a nil error means the tag does not exist.
type Lookup interface {
	GetWithLabels(ctx context.Context, tag string) (*snapshot.Info, error)
}

// Match is the most advanced snapshot that is still valid.
type Match struct {
	Info *snapshot.Info
	Tag  string
	// Phase produced the snapshot.
	Phase phase.Phase
	// PhaseIndex is Phase's 0-based position in the phase list.
	PhaseIndex int
	// ResumeFromPhase is the 0-based index of the first phase that still
	// has to run. It equals len(phases) when everything is cached.
	ResumeFromPhase int
}

// Complete reports whether every phase is already materialized.
func (m *Match) Complete(total int) bool {
	return m != nil && m.ResumeFromPhase >= total
}

// Resolver picks the resume point of a build.
type Resolver struct {
	store Lookup
}

// NewResolver creates a Resolver reading snapshots from store.
func NewResolver(store Lookup) *Resolver {
	return &Resolver{store: store}
}

// FindValidSnapshot scans phases latest-first and returns the first
// snapshot whose recorded hashes match hashes for its phase and every
// phase before it. Snapshots recording a failed phase are never used. It returns nil when the build must start from scratch.
func (r *Resolver) FindValidSnapshot(ctx context.Context, habitat string, hashes map[string]string, phases []phase.Phase) (*Match, error) {
	if habitat == "" {
		return nil, herrors.Validation("habitat name is required")
	}

	for i := len(phases) - 1; i >= 0; i-- {
		p := phases[i]
		tag := snapshot.Tag(habitat, p)

		info, err := r.store.GetWithLabels(ctx, tag)
		if err != nil {
			return nil, err
		}
		if info == nil {
			logging.Debug("no snapshot for phase", "phase", p.Name, "tag", tag)
			continue
		}

		if info.Result == snapshot.ResultFail {
			logging.Debug("skipping failed snapshot", "phase", p.Name, "tag", tag)
			continue
		}

		if !phase.ValidatePrefix(info.Labels, hashes, phase.Names(phases, i)) {
			logging.Debug("snapshot invalidated by hash change", "phase", p.Name, "tag", tag)
			continue
		}

		logging.Debug("cache hit", "phase", p.Name, "tag", tag, "resume", i+1)
		return &Match{
			Info:            info,
			Tag:             tag,
			Phase:           p,
			PhaseIndex:      i,
			ResumeFromPhase: i + 1,
		}, nil
	}

	logging.Debug("no valid snapshot, starting from scratch", "habitat", habitat)
	return nil, nil
}
