// Package phase describes build phases and computes their content hashes.
package phase

import (
	"time"
)

// Phase is one ordered build step of a habitat.
type Phase struct {
	// ID is the 1-based build order.
	ID int
	// Name is unique within a build.
	Name string
	// Hash is the content hash of everything the phase observes.
	Hash string
}

// StepKind selects what a step does inside the build container.
type StepKind string

const (
	StepExec StepKind = "exec"
	StepCopy StepKind = "copy"
)

// Step is a single action performed while executing a phase.
type Step struct {
	Kind StepKind `json:"kind"`

	// Exec steps
	Script  string `json:"script,omitempty"`
	User    string `json:"user,omitempty"`
	WorkDir string `json:"workdir,omitempty"`

	// Copy steps; Src is a resolved host path
	Src   string `json:"src,omitempty"`
	Dest  string `json:"dest,omitempty"`
	Owner string `json:"owner,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// Argv returns the container command line of an exec step.
func (s Step) Argv() []string {
	return []string{"/bin/sh", "-c", s.Script}
}

// Spec is the configured work of one phase.
// Timeout and NoSnapshot steer execution only and never affect the hash.
type Spec struct {
	Name  string
	Steps []Step
	// Inputs are extra values the phase depends on, such as the base image.
	Inputs     []string
	Timeout    time.Duration
	NoSnapshot bool
}

// Phases pairs specs with their hashes in build order.
func Phases(specs []Spec, hashes map[string]string) []Phase {
	phases := make([]Phase, len(specs))
	for i, s := range specs {
		phases[i] = Phase{ID: i + 1, Name: s.Name, Hash: hashes[s.Name]}
	}
	return phases
}

// Names returns the names of phases[0..upTo], inclusive.
func Names(phases []Phase, upTo int) []string {
	if upTo >= len(phases) {
		upTo = len(phases) - 1
	}
	names := make([]string, 0, upTo+1)
	for i := 0; i <= upTo; i++ {
		names = append(names, phases[i].Name)
	}
	return names
}

// HashMap returns the phase hashes keyed by phase name.
func HashMap(phases []Phase) map[string]string {
	m := make(map[string]string, len(phases))
	for _, p := range phases {
		m[p.Name] = p.Hash
	}
	return m
}

// ValidatePrefix reports whether labels record, for every name, the same
// non-empty hash as hashes does.
func ValidatePrefix(labels, hashes map[string]string, names []string) bool {
	for _, name := range names {
		want, ok := hashes[name]
		if !ok || want == "" {
			return false
		}
		if labels[name] != want {
			return false
		}
	}
	return true
}
