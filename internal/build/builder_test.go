package build

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/history"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
	"github.com/bitmage/claude-habitat-sub001/internal/pipeline"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

const demoHabitat = `
name: demo
image: ubuntu:22.04
container:
  user: dev
  workdir: /src
env:
  - EDITOR=vim
users:
  - name: dev
    sudo: true
setup:
  root:
    - apt-get update
  user:
    - make deps
verify:
  - test -d /src
`

var testPaths = &config.Paths{
	ConfigDir:  "/config",
	StateDir:   "/state",
	HistoryDir: "/state/history",
	LocksDir:   "/state/locks",
}

type fixture struct {
	builder *Builder
	engine  *engine.Mock
	fs      *system.MockFS
}

func newFixture(t *testing.T, settings *config.Settings) *fixture {
	t.Helper()
	if settings == nil {
		settings = &config.Settings{Engine: "auto", StageTimeout: time.Minute}
	}

	eng := engine.NewMock()
	mockFS := system.NewMockFS()
	ids := 0
	b := NewBuilder(eng, testPaths, settings,
		WithFileSystem(mockFS),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("run-%08d", ids)
		}),
	)
	return &fixture{builder: b, engine: eng, fs: mockFS}
}

func loadHabitat(t *testing.T, mutate ...func(*config.Habitat)) *config.Habitat {
	t.Helper()
	h, err := config.Parse([]byte(demoHabitat))
	require.NoError(t, err)
	h.Dir = "/habitats/demo"
	for _, m := range mutate {
		m(h)
	}
	return h
}

func runCalls(eng *engine.Mock) []engine.RunOptions {
	var opts []engine.RunOptions
	for _, call := range eng.GetCallsFor("RunContainer") {
		opts = append(opts, call.Args[0].(engine.RunOptions))
	}
	return opts
}

func TestBuild_FullBuild(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	assert.Nil(t, result.Match)
	assert.Equal(t, 0, result.ResumeFrom)
	assert.Equal(t, config.PhaseNames, result.Executed)
	assert.Len(t, result.Snapshots, 8)
	assert.Equal(t, "habitat-demo:8-verify", result.FinalTag)
	assert.False(t, result.UpToDate())

	runs := runCalls(f.engine)
	require.Len(t, runs, 1)
	assert.Equal(t, "ubuntu:22.04", runs[0].Image)
	assert.Equal(t, "root", runs[0].User)
	assert.Equal(t, "habitat-build-demo-run-0000", runs[0].Name)

	img, ok := f.engine.Image("habitat-demo:8-verify")
	require.True(t, ok)
	assert.Equal(t, "pass", img.Labels[snapshot.LabelResult])
	for _, p := range result.Phases {
		assert.Equal(t, p.Hash, img.Labels[p.Name], p.Name)
	}
	assert.Contains(t, img.Changes, "USER dev")
	assert.Contains(t, img.Changes, "WORKDIR /src")

	base, ok := f.engine.Image("habitat-demo:1-base")
	require.True(t, ok)
	assert.NotContains(t, base.Labels, "users", "early snapshots only record their prefix")

	assert.Empty(t, f.engine.Containers, "build container must be removed")
	assert.False(t, f.fs.Exists("/state/locks/demo.lock"), "lock must be released")

	events, err := f.builder.History().Events("demo")
	require.NoError(t, err)
	require.Len(t, events, 10)
	assert.Equal(t, history.EventBuildStart, events[0].Type)
	assert.Equal(t, history.EventSnapshot, events[1].Type)
	assert.Equal(t, "base", events[1].Phase)
	assert.Equal(t, history.EventBuildComplete, events[9].Type)
	assert.Equal(t, "habitat-demo:8-verify", events[9].Tag)
	assert.Len(t, history.Runs(events), 1)
}

func TestBuild_UpToDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	result, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	assert.True(t, result.UpToDate())
	assert.Empty(t, result.Executed)
	assert.Equal(t, "habitat-demo:8-verify", result.FinalTag)
	assert.Len(t, runCalls(f.engine), 1, "no container for an up-to-date habitat")
}

func TestBuild_ResumesAfterChangedPhase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	changed := loadHabitat(t, func(h *config.Habitat) {
		h.Verify = append(h.Verify, "test -x /usr/bin/git")
	})
	result, err := f.builder.Build(ctx, changed, Options{})
	require.NoError(t, err)

	require.NotNil(t, result.Match)
	assert.Equal(t, "habitat-demo:7-setup", result.Match.Tag)
	assert.Equal(t, 7, result.ResumeFrom)
	assert.Equal(t, []string{"verify"}, result.Executed)
	assert.Equal(t, []string{"habitat-demo:8-verify"}, result.Snapshots)

	runs := runCalls(f.engine)
	require.Len(t, runs, 2)
	assert.Equal(t, "habitat-demo:7-setup", runs[1].Image)
}

func TestBuild_UsersChangeResumesFromBase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	changed := loadHabitat(t, func(h *config.Habitat) {
		h.Users[0].Shell = "/bin/zsh"
	})
	result, err := f.builder.Build(ctx, changed, Options{})
	require.NoError(t, err)

	require.NotNil(t, result.Match)
	assert.Equal(t, "habitat-demo:1-base", result.Match.Tag)
	assert.Equal(t, 1, result.ResumeFrom)
	assert.Equal(t, config.PhaseNames[1:], result.Executed)
}

func TestBuild_Rebuild(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	result, err := f.builder.Build(ctx, loadHabitat(t), Options{Rebuild: true})
	require.NoError(t, err)

	assert.Nil(t, result.Match)
	assert.Equal(t, config.PhaseNames, result.Executed)
	assert.Equal(t, "ubuntu:22.04", runCalls(f.engine)[1].Image)
}

func TestBuild_FailedPhaseKeepsFailSnapshot(t *testing.T) {
	f := newFixture(t, &config.Settings{Engine: "auto", StageTimeout: time.Minute, KeepFailed: true})
	ctx := context.Background()

	f.engine.ExecFunc = func(ctx context.Context, container string, command []string, opts engine.ExecOptions) (*engine.ExecResult, error) {
		if command[len(command)-1] == "make deps" {
			return &engine.ExecResult{ExitCode: 2, Stderr: "make: *** No rule to make target 'deps'.\n"}, nil
		}
		return &engine.ExecResult{}, nil
	}

	result, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.Error(t, err)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "setup", stageErr.Stage)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.ExitCode)
	assert.Contains(t, err.Error(), "No rule to make target")
	assert.Equal(t, herrors.ExitStageFailed, herrors.GetExitCode(err))

	assert.Equal(t, []string{"base", "users", "env", "workdir", "files", "repos"}, result.Executed)
	assert.Equal(t, "habitat-demo:6-repos", result.FinalTag)
	assert.Equal(t, "habitat-demo:7-setup", result.FailedTag)

	failed, ok := f.engine.Image("habitat-demo:7-setup")
	require.True(t, ok)
	assert.Equal(t, "fail", failed.Labels[snapshot.LabelResult])
	assert.Equal(t, "", failed.Labels["setup"])
	assert.Equal(t, "", failed.Labels["verify"])
	assert.NotEmpty(t, failed.Labels["repos"])

	events, _ := f.builder.History().Events("demo")
	last := events[len(events)-1]
	assert.Equal(t, history.EventBuildFailed, last.Type)
	assert.Equal(t, "setup", last.Phase)
	assert.Equal(t, "habitat-demo:7-setup", last.Tag)

	// The fail snapshot never validates, so the next build resumes after repos.
	f.engine.ExecFunc = nil
	result, err = f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, "habitat-demo:6-repos", result.Match.Tag)
	assert.Equal(t, []string{"setup", "verify"}, result.Executed)
}

func TestBuild_FailSnapshotIgnoresInheritedLabels(t *testing.T) {
	f := newFixture(t, &config.Settings{Engine: "auto", StageTimeout: time.Minute, KeepFailed: true})
	ctx := context.Background()

	// The base image already carries every hash of the habitat, as a
	// snapshot of an identical habitat would.
	plan, err := f.builder.Plan(ctx, loadHabitat(t))
	require.NoError(t, err)
	f.engine.AddImage("ubuntu:22.04", phase.HashMap(plan.Phases), time.Now())

	f.engine.ExecFunc = func(ctx context.Context, container string, command []string, opts engine.ExecOptions) (*engine.ExecResult, error) {
		if command[len(command)-1] == "make deps" {
			return &engine.ExecResult{ExitCode: 2}, nil
		}
		return &engine.ExecResult{}, nil
	}

	_, err = f.builder.Build(ctx, loadHabitat(t), Options{})
	require.Error(t, err)

	failed, ok := f.engine.Image("habitat-demo:7-setup")
	require.True(t, ok)
	assert.Equal(t, "fail", failed.Labels[snapshot.LabelResult])
	assert.Equal(t, "", failed.Labels["setup"])
	assert.Equal(t, "", failed.Labels["verify"])

	plan, err = f.builder.Plan(ctx, loadHabitat(t))
	require.NoError(t, err)
	assert.True(t, plan.Status[6].Failed)
	assert.False(t, plan.Status[6].Valid)

	f.engine.ExecFunc = nil
	result, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Match)
	assert.Equal(t, "habitat-demo:6-repos", result.Match.Tag)
	assert.Equal(t, []string{"setup", "verify"}, result.Executed)
}

func TestBuild_FailedPhaseWithoutKeepFailed(t *testing.T) {
	f := newFixture(t, nil)

	f.engine.ExecFunc = func(ctx context.Context, container string, command []string, opts engine.ExecOptions) (*engine.ExecResult, error) {
		if command[len(command)-1] == "test -d /src" {
			return &engine.ExecResult{ExitCode: 1}, nil
		}
		return &engine.ExecResult{}, nil
	}

	result, err := f.builder.Build(context.Background(), loadHabitat(t), Options{})
	require.Error(t, err)
	assert.Empty(t, result.FailedTag)

	_, ok := f.engine.Image("habitat-demo:8-verify")
	assert.False(t, ok)
	assert.Empty(t, f.engine.Containers)
}

func TestBuild_StageTimeout(t *testing.T) {
	f := newFixture(t, nil)

	f.engine.ExecFunc = func(ctx context.Context, container string, command []string, opts engine.ExecOptions) (*engine.ExecResult, error) {
		if command[len(command)-1] == "apt-get update" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &engine.ExecResult{}, nil
	}

	h := loadHabitat(t, func(h *config.Habitat) {
		h.Phases = map[string]config.PhaseOverride{"setup": {Timeout: 50 * time.Millisecond}}
	})

	start := time.Now()
	_, err := f.builder.Build(context.Background(), h, Options{})
	require.Error(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, pipeline.IsTimeout(err))
	assert.Equal(t, herrors.ExitStageTimeout, herrors.GetExitCode(err))
}

func TestBuild_NoSnapshotPhase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	h := loadHabitat(t, func(h *config.Habitat) {
		h.Phases = map[string]config.PhaseOverride{"env": {NoSnapshot: true}}
	})

	result, err := f.builder.Build(ctx, h, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.Executed, "env")
	assert.Len(t, result.Snapshots, 7)
	_, ok := f.engine.Image("habitat-demo:3-env")
	assert.False(t, ok)

	workdir, ok := f.engine.Image("habitat-demo:4-workdir")
	require.True(t, ok)
	assert.Contains(t, workdir.Labels, "env")
}

func TestBuild_Locked(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile("/state/locks/demo.lock", []byte("other 1\n"), 0644)

	_, err := f.builder.Build(context.Background(), loadHabitat(t), Options{})
	require.Error(t, err)
	assert.Equal(t, herrors.ExitHabitatLocked, herrors.GetExitCode(err))
	assert.Empty(t, runCalls(f.engine))
	assert.True(t, f.fs.Exists("/state/locks/demo.lock"), "foreign lock must be left alone")
}

func TestBuild_RunContainerFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.SetError("RunContainer", assert.AnError)

	_, err := f.builder.Build(context.Background(), loadHabitat(t), Options{})
	require.Error(t, err)
	assert.Equal(t, herrors.ExitEngineFailed, herrors.GetExitCode(err))
	assert.False(t, f.fs.Exists("/state/locks/demo.lock"))
}

func TestBuild_InvalidHabitat(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.builder.Build(context.Background(), nil, Options{})
	assert.Equal(t, herrors.ExitValidation, herrors.GetExitCode(err))

	_, err = f.builder.Build(context.Background(), &config.Habitat{Name: "Bad Name"}, Options{})
	assert.Equal(t, herrors.ExitValidation, herrors.GetExitCode(err))
}

func TestBuild_ListenerReceivesStages(t *testing.T) {
	f := newFixture(t, nil)

	var (
		mu     sync.Mutex
		stages []string
	)
	listener := func(e pipeline.Event) {
		if e.Type != pipeline.EventStageStart {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, e.Stage)
	}

	_, err := f.builder.Build(context.Background(), loadHabitat(t), Options{Listener: listener})
	require.NoError(t, err)

	require.Len(t, stages, 16)
	assert.Equal(t, "base", stages[0])
	assert.Equal(t, "snapshot:base", stages[1])
	assert.Equal(t, "snapshot:verify", stages[15])
}

func TestBuild_CopySteps(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile("/habitats/demo/dotfiles/bashrc", []byte("export PS1='$ '\n"), 0644)

	h := loadHabitat(t, func(h *config.Habitat) {
		h.Files = []config.FileConfig{{Src: "dotfiles/bashrc", Dest: "/home/dev/.bashrc", Mode: "0644"}}
	})

	_, err := f.builder.Build(context.Background(), h, Options{})
	require.NoError(t, err)

	copies := f.engine.GetCallsFor("CopyTo")
	require.Len(t, copies, 1)
	assert.Equal(t, "/habitats/demo/dotfiles/bashrc", copies[0].Args[1])
	assert.Equal(t, "/home/dev/.bashrc", copies[0].Args[2])

	var commands []string
	for _, call := range f.engine.GetCallsFor("Exec") {
		commands = append(commands, strings.Join(call.Args[1].([]string), " "))
	}
	assert.Contains(t, commands, "mkdir -p /home/dev")
	assert.Contains(t, commands, "chown dev /home/dev/.bashrc")
	assert.Contains(t, commands, "chmod 0644 /home/dev/.bashrc")
}

func TestPlan(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	changed := loadHabitat(t, func(h *config.Habitat) {
		h.Verify = []string{"true"}
	})
	plan, err := f.builder.Plan(ctx, changed)
	require.NoError(t, err)

	require.Len(t, plan.Status, 8)
	for _, st := range plan.Status[:7] {
		assert.True(t, st.Exists, st.Tag)
		assert.True(t, st.Valid, st.Tag)
	}
	verify := plan.Status[7]
	assert.True(t, verify.Exists)
	assert.False(t, verify.Valid)
	assert.Equal(t, 7, plan.ResumeFrom())
	assert.Empty(t, runCalls(f.engine)[1:], "planning never starts containers")
}

func TestPlan_Empty(t *testing.T) {
	f := newFixture(t, nil)

	plan, err := f.builder.Plan(context.Background(), loadHabitat(t))
	require.NoError(t, err)
	assert.Nil(t, plan.Match)
	assert.Equal(t, 0, plan.ResumeFrom())
	for _, st := range plan.Status {
		assert.False(t, st.Exists)
	}
}

func TestClean(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, loadHabitat(t), Options{})
	require.NoError(t, err)

	removed, err := f.builder.Clean(ctx, "demo", snapshot.RemoveOptions{All: true})
	require.NoError(t, err)
	assert.Len(t, removed, 8)
	assert.Empty(t, f.engine.Images)

	events, _ := f.builder.History().Events("demo")
	last := events[len(events)-1]
	assert.Equal(t, history.EventPurge, last.Type)
	assert.Contains(t, last.Details, "habitat-demo:1-base")

	removed, err = f.builder.Clean(ctx, "demo", snapshot.RemoveOptions{FailedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestClean_Locked(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile("/state/locks/demo.lock", nil, 0644)

	_, err := f.builder.Clean(context.Background(), "demo", snapshot.RemoveOptions{All: true})
	assert.Equal(t, herrors.ExitHabitatLocked, herrors.GetExitCode(err))
}

func TestStepError(t *testing.T) {
	err := &StepError{Phase: "verify", Command: "false", ExitCode: 1, Stderr: "first\nlast line\n"}
	assert.Equal(t, "verify: command exited with status 1: last line", err.Error())

	err.Stderr = ""
	assert.Equal(t, "verify: command exited with status 1", err.Error())
}
