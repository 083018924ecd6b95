package phase

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// Hasher computes deterministic phase hashes.
type Hasher struct {
	fs system.FileSystem
}

// NewHasher creates a Hasher that reads copied files through fs.
func NewHasher(fs system.FileSystem) *Hasher {
	if fs == nil {
		fs = system.DefaultFS()
	}
	return &Hasher{fs: fs}
}

// canonicalStep is a step plus the digest of any file it copies.
type canonicalStep struct {
	Step
	Content string `json:"content,omitempty"`
}

// canonicalPhase is the hashed view of a phase. Struct field order fixes
// the JSON layout.
type canonicalPhase struct {
	Name     string          `json:"name"`
	Position int             `json:"position"`
	After    []string        `json:"after"`
	Inputs   []string        `json:"inputs,omitempty"`
	Steps    []canonicalStep `json:"steps"`
}

// Compute returns one hash per spec, keyed by phase name.
func (h *Hasher) Compute(specs []Spec) (map[string]string, error) {
	hashes := make(map[string]string, len(specs))
	prior := make([]string, 0, len(specs))

	for i, spec := range specs {
		if _, dup := hashes[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate phase name %q", spec.Name)
		}

		sum, err := h.hashPhase(spec, i+1, prior)
		if err != nil {
			return nil, fmt.Errorf("hash phase %s: %w", spec.Name, err)
		}
		hashes[spec.Name] = sum
		prior = append(prior, spec.Name)
	}

	return hashes, nil
}

func (h *Hasher) hashPhase(spec Spec, position int, prior []string) (string, error) {
	c := canonicalPhase{
		Name:     spec.Name,
		Position: position,
		After:    append([]string{}, prior...),
		Inputs:   spec.Inputs,
		Steps:    make([]canonicalStep, 0, len(spec.Steps)),
	}

	for _, step := range spec.Steps {
		cs := canonicalStep{Step: step}
		if step.Kind == StepCopy {
			data, err := h.fs.ReadFile(step.Src)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", step.Src, err)
			}
			cs.Content = digest(data)
			// The host location does not change what lands in the container.
			cs.Src = ""
		}
		c.Steps = append(c.Steps, cs)
	}

	canonical, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return digest(canonical), nil
}

func digest(data []byte) string {
	hasher := blake3.New()
	_, _ = hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
