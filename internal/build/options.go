package build

import (
	"time"

	"github.com/bitmage/claude-habitat-sub001/internal/cache"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
	"github.com/bitmage/claude-habitat-sub001/internal/pipeline"
)

// Options contains options for a build.
type Options struct {
	// Rebuild ignores existing snapshots and runs every phase.
	Rebuild bool

	// Listener receives the pipeline events of the run.
	Listener pipeline.Listener
}

// Result contains the outcome of a build.
type Result struct {
	RunID   string
	Habitat string

	// Phases are all phases of the habitat with their hashes.
	Phases []phase.Phase

	// Match is the snapshot the build resumed from, nil for a full build.
	Match *cache.Match

	// ResumeFrom is the 0-based index of the first executed phase.
	ResumeFrom int

	// Executed lists the phases that ran, in order.
	Executed []string

	// Snapshots lists the tags committed by this run.
	Snapshots []string

	// FinalTag is the most advanced snapshot after the run.
	FinalTag string

	// FailedTag is the fail snapshot kept for inspection, if any.
	FailedTag string

	Duration time.Duration
}

// UpToDate reports whether nothing had to run.
func (r *Result) UpToDate() bool {
	return r.Match.Complete(len(r.Phases))
}

// PhaseStatus describes the cache state of one phase.
type PhaseStatus struct {
	Phase phase.Phase
	Tag   string
	// Exists is true when a snapshot is stored under Tag.
	Exists bool
	// Valid is true when the snapshot matches the current hashes of the
	// phase and every phase before it.
	Valid bool
	// Failed is true when the stored snapshot records a failed phase.
	Failed bool
}

// Plan is the cache state of a habitat before building it.
type Plan struct {
	Habitat string
	Phases  []phase.Phase
	Status  []PhaseStatus
	Match   *cache.Match
}

// ResumeFrom returns the 0-based index of the first phase a build would run.
func (p *Plan) ResumeFrom() int {
	if p.Match == nil {
		return 0
	}
	return p.Match.ResumeFromPhase
}
