package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
)

// Info is a resolved snapshot and its label set.
type Info struct {
	Tag       string
	Labels    map[string]string
	Result    Result
	CreatedAt time.Time
}

// Summary is one entry returned by List.
type Summary struct {
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats aggregates a habitat's snapshots by recorded result.
type Stats struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Unknown int `json:"unknown"`
}

// CreateOptions holds options for Create.
type CreateOptions struct {
	// Labels are merged with the result and timestamp labels.
	Labels map[string]string
	Result Result
	// Changes are extra commit directives (e.g. "USER dev").
	Changes []string
}

// RemoveOptions selects exactly one removal mode.
type RemoveOptions struct {
	// All removes every snapshot of the habitat.
	All bool
	// Phases removes the snapshots of the listed phases.
	Phases []phase.Phase
	// FailedOnly removes snapshots whose recorded result is fail.
	FailedOnly bool
}

// Store manages snapshot images through a container engine.
type Store struct {
	engine engine.Engine
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store backed by eng.
func NewStore(eng engine.Engine, opts ...Option) *Store {
	s := &Store{
		engine: eng,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create commits container into a new snapshot image under tag.
func (s *Store) Create(ctx context.Context, container, tag string, opts CreateOptions) (string, error) {
	if container == "" {
		return "", herrors.Validation("snapshot container is required")
	}
	if tag == "" {
		return "", herrors.Validation("snapshot tag is required")
	}

	result := opts.Result
	if result == ResultUnknown {
		result = ResultPass
	}

	labels := make(map[string]string, len(opts.Labels)+2)
	for k, v := range opts.Labels {
		labels[k] = v
	}
	labels[LabelResult] = string(result)
	labels[LabelTimestamp] = formatTimestamp(s.now())

	logging.Debug("creating snapshot", "tag", tag, "container", container, "result", result)

	err := s.engine.Commit(ctx, container, tag, engine.CommitOptions{
		Labels:  labels,
		Changes: opts.Changes,
	})
	if err != nil {
		return "", herrors.SnapshotCreation(tag, err)
	}

	return tag, nil
}

// GetWithLabels resolves a tag to its labels.
// It returns a nil Info and a nil error when the tag does not exist.
func (s *Store) GetWithLabels(ctx context.Context, tag string) (*Info, error) {
	if tag == "" {
		return nil, herrors.Validation("snapshot tag is required")
	}

	labels, err := s.engine.InspectLabels(ctx, tag)
	if err != nil {
		if errors.Is(err, engine.ErrNoSuchImage) {
			return nil, nil
		}
		return nil, herrors.EngineFailed("inspect "+tag, err)
	}

	return &Info{
		Tag:       tag,
		Labels:    labels,
		Result:    ParseResult(labels[LabelResult]),
		CreatedAt: parseTimestamp(labels[LabelTimestamp]),
	}, nil
}

// Exists reports whether a snapshot exists under tag.
func (s *Store) Exists(ctx context.Context, tag string) (bool, error) {
	info, err := s.GetWithLabels(ctx, tag)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// List returns every snapshot of a habitat, ordered by phase ID.
func (s *Store) List(ctx context.Context, habitat string) ([]Summary, error) {
	if habitat == "" {
		return nil, herrors.Validation("habitat name is required")
	}

	repo := Repository(habitat)
	images, err := s.engine.ListImages(ctx, repo)
	if err != nil {
		return nil, herrors.EngineFailed("list "+repo, err)
	}

	summaries := make([]Summary, 0, len(images))
	for _, img := range images {
		if img.Repository != repo {
			continue
		}
		summaries = append(summaries, Summary{Tag: img.Ref(), CreatedAt: img.CreatedAt})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return lessTag(summaries[i].Tag, summaries[j].Tag)
	})

	return summaries, nil
}

// lessTag orders phase tags numerically by phase ID; anything that is not
// a phase tag sorts last.
func lessTag(a, b string) bool {
	_, ia, _, errA := ParseTag(a)
	_, ib, _, errB := ParseTag(b)
	switch {
	case errA == nil && errB == nil && ia != ib:
		return ia < ib
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	default:
		return strings.Compare(a, b) < 0
	}
}

// Remove deletes snapshots of a habitat in the selected mode and returns
// exactly the tags it removed. Missing images are skipped.
func (s *Store) Remove(ctx context.Context, habitat string, opts RemoveOptions) ([]string, error) {
	if habitat == "" {
		return nil, herrors.Validation("habitat name is required")
	}

	modes := 0
	if opts.All {
		modes++
	}
	if len(opts.Phases) > 0 {
		modes++
	}
	if opts.FailedOnly {
		modes++
	}
	if modes != 1 {
		return nil, herrors.Validation("exactly one of all, phases or failed-only must be selected")
	}

	var candidates []string
	switch {
	case opts.All:
		summaries, err := s.List(ctx, habitat)
		if err != nil {
			return nil, err
		}
		for _, sum := range summaries {
			candidates = append(candidates, sum.Tag)
		}

	case len(opts.Phases) > 0:
		for _, p := range opts.Phases {
			candidates = append(candidates, Tag(habitat, p))
		}

	case opts.FailedOnly:
		summaries, err := s.List(ctx, habitat)
		if err != nil {
			return nil, err
		}
		for _, sum := range summaries {
			info, err := s.GetWithLabels(ctx, sum.Tag)
			if err != nil {
				return nil, err
			}
			if info != nil && info.Result == ResultFail {
				candidates = append(candidates, sum.Tag)
			}
		}
	}

	removed := make([]string, 0, len(candidates))
	for _, tag := range candidates {
		err := s.engine.RemoveImage(ctx, tag)
		if errors.Is(err, engine.ErrNoSuchImage) {
			logging.Debug("snapshot already gone", "tag", tag)
			continue
		}
		if err != nil {
			return removed, herrors.EngineFailed("remove "+tag, err)
		}
		logging.Debug("removed snapshot", "tag", tag)
		removed = append(removed, tag)
	}

	return removed, nil
}

// Stats counts a habitat's snapshots by recorded result.
func (s *Store) Stats(ctx context.Context, habitat string) (Stats, error) {
	summaries, err := s.List(ctx, habitat)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, sum := range summaries {
		info, err := s.GetWithLabels(ctx, sum.Tag)
		if err != nil {
			return Stats{}, err
		}
		if info == nil {
			// Removed between list and inspect.
			continue
		}

		stats.Total++
		switch info.Result {
		case ResultPass:
			stats.Passed++
		case ResultFail:
			stats.Failed++
		default:
			stats.Unknown++
		}
	}

	return stats, nil
}

// Describe renders stats for user output.
func (st Stats) Describe() string {
	return fmt.Sprintf("%d snapshots (%d passed, %d failed, %d unknown)", st.Total, st.Passed, st.Failed, st.Unknown)
}
