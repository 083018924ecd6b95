package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmage/claude-habitat-sub001/internal/build"
	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	"github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
)

func TestBuild_Lifecycle(t *testing.T) {
	h := NewHarness(t)
	name := h.Name("lifecycle")
	hab := h.WriteHabitat(name, DefaultHabitat(name))

	result := h.Build(hab, build.Options{})
	require.Len(t, result.Snapshots, 8, "first build should commit every phase")
	assert.Equal(t, snapshot.Tag(name, result.Phases[7]), result.FinalTag)

	t.Run("up to date", func(t *testing.T) {
		again := h.Build(hab, build.Options{})
		assert.True(t, again.UpToDate(), "second build ran %v", again.Executed)
	})

	t.Run("resume after setup change", func(t *testing.T) {
		changed := h.WriteHabitat(name, strings.Replace(DefaultHabitat(name), `"$GREETING"`, `"$GREETING world"`, 1))
		resumed := h.Build(changed, build.Options{})
		assert.Equal(t, 6, resumed.ResumeFrom)
		assert.Len(t, resumed.Executed, 2, "want setup and verify")
	})

	t.Run("labels", func(t *testing.T) {
		labels, err := h.Engine().InspectLabels(context.Background(), result.FinalTag)
		require.NoError(t, err)
		assert.Equal(t, snapshot.ResultPass, snapshot.ParseResult(labels[snapshot.LabelResult]))
	})
}

func TestBuild_FailedVerify(t *testing.T) {
	h := NewHarness(t)
	name := h.Name("failing")
	content := strings.Replace(DefaultHabitat(name), "test -f /etc/motd", "test -f /nonexistent", 1)
	hab := h.WriteHabitat(name, content)

	_, err := h.Builder().Build(context.Background(), hab, build.Options{})
	require.Error(t, err, "build should fail")
	assert.Equal(t, errors.ExitStageFailed, errors.GetExitCode(err))

	// The setup snapshot survives the failure.
	tags, err := h.Builder().Store().List(context.Background(), name)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(tags), 7)
}

func TestEngine_MissingImage(t *testing.T) {
	h := NewHarness(t)

	_, err := h.Engine().InspectLabels(context.Background(), h.Name("habitat-missing")+":1-base")
	assert.ErrorIs(t, err, engine.ErrNoSuchImage)
}
