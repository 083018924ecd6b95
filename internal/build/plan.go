package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitmage/claude-habitat-sub001/internal/config"
	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/history"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
)

// Plan reports the hash and snapshot state of every phase of h without
// building anything.
func (b *Builder) Plan(ctx context.Context, h *config.Habitat) (*Plan, error) {
	if h == nil {
		return nil, herrors.Validation("habitat is required")
	}

	_, phases, err := b.hashPhases(h)
	if err != nil {
		return nil, err
	}
	hashes := phase.HashMap(phases)

	plan := &Plan{Habitat: h.Name, Phases: phases}
	for i, p := range phases {
		tag := snapshot.Tag(h.Name, p)
		info, err := b.store.GetWithLabels(ctx, tag)
		if err != nil {
			return nil, err
		}

		st := PhaseStatus{Phase: p, Tag: tag}
		if info != nil {
			st.Exists = true
			st.Failed = info.Result == snapshot.ResultFail
			st.Valid = !st.Failed && phase.ValidatePrefix(info.Labels, hashes, phase.Names(phases, i))
		}
		plan.Status = append(plan.Status, st)
	}

	plan.Match, err = b.resolver.FindValidSnapshot(ctx, h.Name, hashes, phases)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Clean removes snapshots of a habitat and records the purge.
func (b *Builder) Clean(ctx context.Context, habitat string, opts snapshot.RemoveOptions) ([]string, error) {
	if err := config.ValidateHabitatName(habitat); err != nil {
		return nil, herrors.Validation("%v", err)
	}

	release, err := b.acquireLock(habitat, "clean")
	if err != nil {
		return nil, err
	}
	defer release()

	removed, err := b.store.Remove(ctx, habitat, opts)
	if err != nil {
		return removed, err
	}

	if len(removed) > 0 {
		b.record(history.Event{
			Type:    history.EventPurge,
			Habitat: habitat,
			Details: fmt.Sprintf("removed %s", strings.Join(removed, ", ")),
		})
	}
	return removed, nil
}
