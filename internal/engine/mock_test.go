package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_CommitInheritsSourceLabels(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	m.AddImage("ubuntu:22.04", map[string]string{"base": "h1", "setup": "h7", "vendor": "acme"}, time.Now())

	id, err := m.RunContainer(ctx, RunOptions{Image: "ubuntu:22.04"})
	require.NoError(t, err)

	err = m.Commit(ctx, id, "habitat-demo:7-setup", CommitOptions{
		Labels: map[string]string{"base": "h1", "setup": "", "habitat.result": "fail"},
	})
	require.NoError(t, err)

	labels, err := m.InspectLabels(ctx, "habitat-demo:7-setup")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"base":           "h1",
		"setup":          "",
		"vendor":         "acme",
		"habitat.result": "fail",
	}, labels)

	// The source image is untouched.
	src, ok := m.Image("ubuntu:22.04")
	require.True(t, ok)
	assert.Equal(t, "h7", src.Labels["setup"])
}

func TestMock_CommitUnknownSourceImage(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	id, err := m.RunContainer(ctx, RunOptions{Image: "debian:bookworm"})
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, id, "habitat-demo:1-base", CommitOptions{Labels: map[string]string{"base": "h1"}}))

	img, ok := m.Image("habitat-demo:1-base")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"base": "h1"}, img.Labels)
	assert.Equal(t, "debian:bookworm", img.FromImage)
}

func TestMock_CommitNoSuchContainer(t *testing.T) {
	m := NewMock()
	err := m.Commit(context.Background(), "missing", "habitat-demo:1-base", CommitOptions{})
	assert.Error(t, err)
}
