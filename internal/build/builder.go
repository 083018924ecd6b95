package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitmage/claude-habitat-sub001/internal/cache"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/history"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
	"github.com/bitmage/claude-habitat-sub001/internal/pipeline"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// snapshotStagePrefix prefixes the stage that commits a phase.
const snapshotStagePrefix = "snapshot:"

// Builder builds habitats phase by phase on top of cached snapshots.
type Builder struct {
	engine   engine.Engine
	store    *snapshot.Store
	resolver *cache.Resolver
	hasher   *phase.Hasher
	history  *history.Log
	fsys     system.FileSystem
	locksDir string
	settings *config.Settings
	newID    func() string
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithFileSystem sets the filesystem used for locks, hashing and history.
func WithFileSystem(fsys system.FileSystem) Option {
	return func(b *Builder) {
		b.fsys = fsys
	}
}

// WithHistory sets the history log.
func WithHistory(log *history.Log) Option {
	return func(b *Builder) {
		b.history = log
	}
}

// WithClock sets the time source for durations and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithIDGenerator sets how run IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(b *Builder) {
		b.newID = newID
	}
}

// NewBuilder creates a Builder storing snapshots in eng.
func NewBuilder(eng engine.Engine, paths *config.Paths, settings *config.Settings, opts ...Option) *Builder {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	b := &Builder{
		engine:   eng,
		fsys:     system.DefaultFS(),
		locksDir: paths.LocksDir,
		settings: settings,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.store = snapshot.NewStore(eng, snapshot.WithClock(b.now))
	b.resolver = cache.NewResolver(b.store)
	b.hasher = phase.NewHasher(b.fsys)
	if b.history == nil {
		b.history = history.NewLog(paths.HistoryDir, b.fsys)
	}

	return b
}

// Store returns the snapshot store the builder writes to.
func (b *Builder) Store() *snapshot.Store {
	return b.store
}

// History returns the build history log.
func (b *Builder) History() *history.Log {
	return b.history
}

// state is threaded through the build pipeline.
type state struct {
	Container string
	// Tag is the most recent snapshot of the run.
	Tag string
}

// tracker collects what a run did. A handler abandoned after a timeout
// may still report into it, so access is locked.
type tracker struct {
	mu        sync.Mutex
	executed  []string
	snapshots []string
}

func (t *tracker) ran(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executed = append(t.executed, name)
}

func (t *tracker) committed(tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots = append(t.snapshots, tag)
}

func (t *tracker) fill(r *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.Executed = append([]string(nil), t.executed...)
	r.Snapshots = append([]string(nil), t.snapshots...)
	if len(t.snapshots) > 0 {
		r.FinalTag = t.snapshots[len(t.snapshots)-1]
	}
}

// Build runs every phase of h that has no valid snapshot and commits a
// snapshot after each one.
func (b *Builder) Build(ctx context.Context, h *config.Habitat, opts Options) (*Result, error) {
	if h == nil {
		return nil, herrors.Validation("habitat is required")
	}
	if err := config.ValidateHabitatName(h.Name); err != nil {
		return nil, herrors.Validation("%v", err)
	}

	runID := b.newID()
	start := b.now()
	log := logging.ForBuild(h.Name, runID)
	log.Debug("starting build", "rebuild", opts.Rebuild)

	release, err := b.acquireLock(h.Name, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	specs, phases, err := b.hashPhases(h)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: runID, Habitat: h.Name, Phases: phases}

	if !opts.Rebuild {
		match, err := b.resolver.FindValidSnapshot(ctx, h.Name, phase.HashMap(phases), phases)
		if err != nil {
			return nil, err
		}
		if match != nil {
			result.Match = match
			result.ResumeFrom = match.ResumeFromPhase
			result.FinalTag = match.Tag
		}
	}

	b.record(history.Event{Type: history.EventBuildStart, Habitat: h.Name, RunID: runID, Details: startDetails(result)})

	if result.UpToDate() {
		result.Duration = b.now().Sub(start)
		log.Info("habitat is up to date", "tag", result.FinalTag)
		b.record(history.Event{Type: history.EventBuildComplete, Habitat: h.Name, RunID: runID, Tag: result.FinalTag, Details: "up to date"})
		return result, nil
	}

	image := h.Image
	if result.Match != nil {
		image = result.Match.Tag
	}

	log.Info("build started", "image", image, "resume", result.ResumeFrom)
	container, err := b.engine.RunContainer(ctx, engine.RunOptions{
		Name:  containerName(h.Name, runID),
		Image: image,
		User:  "root",
		Env:   h.RuntimeEnv(),
	})
	if err != nil {
		err = herrors.EngineFailed("run "+image, err)
		log.Info("build container did not start", "image", image, "error", err)
		b.recordFailure(result, "", err)
		return result, err
	}
	defer b.removeContainer(ctx, log, container)

	t := &tracker{}
	p, workStages := b.newPipeline(h, specs, phases, result.ResumeFrom, t)
	if opts.Listener != nil {
		unsubscribe := p.SetProgressListener(opts.Listener)
		defer unsubscribe()
	}

	_, runErr := p.Run(ctx, state{Container: container, Tag: result.FinalTag})

	t.fill(result)
	if len(result.Snapshots) == 0 && result.Match != nil {
		result.FinalTag = result.Match.Tag
	}
	result.Duration = b.now().Sub(start)

	if runErr != nil {
		failedPhase := ""
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			if i, ok := workStages[stageErr.Stage]; ok {
				failedPhase = phases[i].Name
				if b.settings.KeepFailed {
					result.FailedTag = b.keepFailed(ctx, log, container, h.Name, phases, i)
				}
			}
		}
		log.Info("build failed", "phase", failedPhase, "duration", result.Duration, "error", runErr)
		b.recordFailure(result, failedPhase, runErr)
		return result, runErr
	}

	log.Info("build complete", "tag", result.FinalTag, "executed", len(result.Executed), "duration", result.Duration)
	b.record(history.Event{
		Type:    history.EventBuildComplete,
		Habitat: h.Name,
		RunID:   runID,
		Tag:     result.FinalTag,
		Details: fmt.Sprintf("%d phases in %s", len(result.Executed), result.Duration.Round(time.Millisecond)),
	})
	return result, nil
}

// newPipeline registers a work stage for every phase from resumeFrom on,
// each followed by a snapshot stage unless the phase opts out. It returns
// the pipeline and the phase index of every work stage.
func (b *Builder) newPipeline(h *config.Habitat, specs []phase.Spec, phases []phase.Phase, resumeFrom int, t *tracker) (*pipeline.Pipeline[state], map[string]int) {
	p := pipeline.New[state]("build " + h.Name)
	workStages := make(map[string]int)
	env := h.RuntimeEnv()
	changes := snapshotChanges(h)

	for i := resumeFrom; i < len(specs); i++ {
		spec := specs[i]
		ph := phases[i]

		timeout := spec.Timeout
		if timeout <= 0 {
			timeout = b.settings.StageTimeout
		}

		stageOpts := []pipeline.StageOption{pipeline.WithTimeout(timeout)}
		if spec.NoSnapshot {
			stageOpts = append(stageOpts, pipeline.WithNoSnapshot())
		}

		workStages[ph.Name] = i
		p.AddStage(ph.Name, b.phaseHandler(spec, env, t), stageOpts...)

		if spec.NoSnapshot {
			continue
		}

		labels := snapshot.PhaseLabels(phases, i)
		tag := snapshot.Tag(h.Name, ph)
		p.AddStage(snapshotStagePrefix+ph.Name, b.snapshotHandler(h.Name, ph.Name, tag, labels, changes, t), pipeline.WithTimeout(b.settings.StageTimeout))
	}

	return p, workStages
}

func (b *Builder) phaseHandler(spec phase.Spec, env []string, t *tracker) pipeline.Handler[state] {
	return func(ctx context.Context, st state) (state, error) {
		for _, step := range spec.Steps {
			if err := b.runStep(ctx, st.Container, spec.Name, env, step); err != nil {
				return st, err
			}
		}
		t.ran(spec.Name)
		return st, nil
	}
}

func (b *Builder) snapshotHandler(habitat, phaseName, tag string, labels map[string]string, changes []string, t *tracker) pipeline.Handler[state] {
	return func(ctx context.Context, st state) (state, error) {
		if _, err := b.store.Create(ctx, st.Container, tag, snapshot.CreateOptions{
			Labels:  labels,
			Result:  snapshot.ResultPass,
			Changes: changes,
		}); err != nil {
			return st, err
		}

		t.committed(tag)
		b.record(history.Event{Type: history.EventSnapshot, Habitat: habitat, Phase: phaseName, Tag: tag})
		st.Tag = tag
		return st, nil
	}
}

// keepFailed commits the container of a failed phase under that phase's
// tag. The failed phase and the ones after it get empty hash labels, and
// the resolver skips fail snapshots regardless.
func (b *Builder) keepFailed(ctx context.Context, log *slog.Logger, container, habitat string, phases []phase.Phase, failed int) string {
	tag := snapshot.Tag(habitat, phases[failed])
	_, err := b.store.Create(context.WithoutCancel(ctx), container, tag, snapshot.CreateOptions{
		Labels: snapshot.FailLabels(phases, failed),
		Result: snapshot.ResultFail,
	})
	if err != nil {
		log.Error("failed to keep snapshot of failed phase", "tag", tag, "error", err)
		return ""
	}
	log.Info("kept failed snapshot", "tag", tag)
	return tag
}

func (b *Builder) hashPhases(h *config.Habitat) ([]phase.Spec, []phase.Phase, error) {
	specs, err := h.PhaseSpecs()
	if err != nil {
		return nil, nil, herrors.ConfigError("invalid habitat "+h.Name, err)
	}

	hashes, err := b.hasher.Compute(specs)
	if err != nil {
		return nil, nil, herrors.ConfigError("failed to hash phases of "+h.Name, err)
	}

	return specs, phase.Phases(specs, hashes), nil
}

func (b *Builder) removeContainer(ctx context.Context, log *slog.Logger, container string) {
	if err := b.engine.RemoveContainer(context.WithoutCancel(ctx), container); err != nil {
		log.Error("failed to remove build container", "container", container, "error", err)
	}
}

func (b *Builder) record(event history.Event) {
	if err := b.history.Record(event); err != nil {
		logging.Warn("failed to record build history", "habitat", event.Habitat, "error", err)
	}
}

func (b *Builder) recordFailure(r *Result, failedPhase string, err error) {
	b.record(history.Event{
		Type:    history.EventBuildFailed,
		Habitat: r.Habitat,
		RunID:   r.RunID,
		Phase:   failedPhase,
		Tag:     r.FailedTag,
		Details: err.Error(),
	})
}

func startDetails(r *Result) string {
	switch {
	case r.Match == nil:
		return fmt.Sprintf("full build of %d phases", len(r.Phases))
	case r.UpToDate():
		return "resumed from " + r.Match.Tag
	default:
		return fmt.Sprintf("resumed from %s at phase %s", r.Match.Tag, r.Phases[r.ResumeFrom].Name)
	}
}

func containerName(habitat, runID string) string {
	id := runID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("habitat-build-%s-%s", habitat, id)
}

// snapshotChanges resets the idle entrypoint of the build container and
// carries the runtime identity into committed images.
func snapshotChanges(h *config.Habitat) []string {
	changes := []string{`ENTRYPOINT []`, `CMD ["/bin/sh", "-l"]`}
	if h.Container.User != "" {
		changes = append(changes, "USER "+h.Container.User)
	}
	if h.Container.WorkDir != "" {
		changes = append(changes, "WORKDIR "+h.Container.WorkDir)
	}
	return changes
}
