package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
)

func TestChannelListener_DropsWhenFull(t *testing.T) {
	cl := NewChannelListener(2)

	for i := 0; i < 5; i++ {
		cl.Notify(Event{Type: EventStageStart, StageNumber: i + 1})
	}

	assert.Equal(t, int64(3), cl.Dropped())
	first := <-cl.Events()
	assert.Equal(t, 1, first.StageNumber)
}

func TestChannelListener_CloseStopsDelivery(t *testing.T) {
	cl := NewChannelListener(4)
	cl.Notify(Event{Type: EventPipelineStart})
	cl.Close()
	cl.Close()
	cl.Notify(Event{Type: EventPipelineComplete})

	var got []EventType
	for e := range cl.Events() {
		got = append(got, e.Type)
	}
	assert.Equal(t, []EventType{EventPipelineStart}, got)
	assert.Equal(t, int64(1), cl.Dropped())
}

func TestChannelListener_NeverBlocksRun(t *testing.T) {
	cl := NewChannelListener(1)
	p := New[int]("demo")
	for _, name := range []string{"a", "b", "c", "d"} {
		p.AddStage(name, func(ctx context.Context, in int) (int, error) { return in + 1, nil })
	}
	p.SetProgressListener(cl.Notify)

	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := p.Run(context.Background(), 0)
		assert.NoError(t, err)
		assert.Equal(t, 4, out)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "run blocked on an unread listener")
	}
	assert.Positive(t, cl.Dropped())
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry[int]().
		Register("double", func(ctx context.Context, in int) (int, error) { return in * 2, nil }).
		Register("inc", func(ctx context.Context, in int) (int, error) { return in + 1, nil })

	assert.Equal(t, []string{"double", "inc"}, reg.Names())

	p, err := reg.Build("math", []StageRef{{Name: "inc"}, {Name: "double", Options: []StageOption{WithNoSnapshot()}}})
	require.NoError(t, err)

	out, err := p.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 8, out)
	assert.True(t, p.Stages()[1].Options.NoSnapshot)
}

func TestRegistry_UnknownNameFailsAtBuild(t *testing.T) {
	reg := NewRegistry[int]().Register("inc", func(ctx context.Context, in int) (int, error) { return in + 1, nil })

	p, err := reg.Build("math", []StageRef{{Name: "inc"}, {Name: "teardown"}})
	assert.Nil(t, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"teardown"`)
	assert.Equal(t, herrors.ExitValidation, herrors.GetExitCode(err))
}
