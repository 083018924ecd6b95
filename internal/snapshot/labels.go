package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bitmage/claude-habitat-sub001/internal/phase"
)

// Label keys written on every snapshot. Phase hashes are stored under the
// phase name itself, so phase names never contain a dot.
const (
	LabelResult    = "habitat.result"
	LabelTimestamp = "habitat.timestamp"
)

// Result is the recorded outcome of the phase that produced a snapshot.
type Result string

const (
	ResultPass    Result = "pass"
	ResultFail    Result = "fail"
	ResultUnknown Result = ""
)

// ParseResult maps a label value to a Result; anything unrecognized is
// ResultUnknown.
func ParseResult(value string) Result {
	switch Result(value) {
	case ResultPass, ResultFail:
		return Result(value)
	default:
		return ResultUnknown
	}
}

// Repository returns the image repository holding a habitat's snapshots.
func Repository(habitat string) string {
	return "habitat-" + habitat
}

// Tag returns the snapshot tag of a phase:
// habitat-<habitatName>:<phaseId>-<phaseName>.
func Tag(habitat string, p phase.Phase) string {
	return fmt.Sprintf("%s:%d-%s", Repository(habitat), p.ID, p.Name)
}

// ParseTag splits a snapshot tag into its habitat, phase ID and phase name.
func ParseTag(tag string) (habitat string, id int, name string, err error) {
	repo, rest, ok := strings.Cut(tag, ":")
	if !ok || !strings.HasPrefix(repo, "habitat-") {
		return "", 0, "", fmt.Errorf("not a habitat snapshot tag: %q", tag)
	}

	idStr, name, ok := strings.Cut(rest, "-")
	if !ok || name == "" {
		return "", 0, "", fmt.Errorf("malformed phase in snapshot tag: %q", tag)
	}

	id, err = strconv.Atoi(idStr)
	if err != nil || id < 1 {
		return "", 0, "", fmt.Errorf("malformed phase id in snapshot tag: %q", tag)
	}

	return strings.TrimPrefix(repo, "habitat-"), id, name, nil
}

// PhaseLabels returns the hash labels for phases[0..upTo], inclusive.
func PhaseLabels(phases []phase.Phase, upTo int) map[string]string {
	labels := make(map[string]string, upTo+1)
	for i := 0; i <= upTo && i < len(phases); i++ {
		labels[phases[i].Name] = phases[i].Hash
	}
	return labels
}

// FailLabels returns the labels of a snapshot taken after phases[failed]
// failed. Earlier phases carry their hashes; the failed phase and every
// later one are set to empty, which overrides any label inherited from the
// source image.
func FailLabels(phases []phase.Phase, failed int) map[string]string {
	labels := PhaseLabels(phases, failed-1)
	for i := max(failed, 0); i < len(phases); i++ {
		labels[phases[i].Name] = ""
	}
	return labels
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
