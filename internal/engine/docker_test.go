package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

func newTestDocker() (*Docker, *system.MockExecutor) {
	exec := system.NewMockExecutor()
	return NewDocker("docker", exec), exec
}

func TestDocker_Name(t *testing.T) {
	d := NewDocker("docker", system.NewMockExecutor())
	assert.Equal(t, "docker", d.Name())

	d.Command = "podman"
	assert.Equal(t, "podman", d.Name())
}

func TestDocker_Commit(t *testing.T) {
	d, exec := newTestDocker()

	err := d.Commit(context.Background(), "c1", "habitat-x:2-users", CommitOptions{
		Labels: map[string]string{
			"users":          "h2",
			"base":           "h1",
			"habitat.result": "pass",
		},
		Changes: []string{"WORKDIR /src"},
	})
	require.NoError(t, err)

	cmd, _ := exec.LastCommand()
	assert.Equal(t, []string{
		"commit",
		"--change", `LABEL base="h1"`,
		"--change", `LABEL habitat.result="pass"`,
		"--change", `LABEL users="h2"`,
		"--change", "WORKDIR /src",
		"c1", "habitat-x:2-users",
	}, cmd.Args)
}

func TestDocker_Commit_EmptyLabelOverridesInherited(t *testing.T) {
	d, exec := newTestDocker()

	err := d.Commit(context.Background(), "c1", "habitat-x:2-users", CommitOptions{
		Labels: map[string]string{"users": "", "habitat.result": "fail"},
	})
	require.NoError(t, err)

	cmd, _ := exec.LastCommand()
	assert.Contains(t, cmd.Args, `LABEL users=""`)
	assert.Contains(t, cmd.Args, `LABEL habitat.result="fail"`)
}

func TestDocker_InspectLabels(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		failure string
		want    map[string]string
		wantErr error
	}{
		{
			name:   "labels present",
			output: `{"base":"h1","habitat.result":"pass"}` + "\n",
			want:   map[string]string{"base": "h1", "habitat.result": "pass"},
		},
		{
			name:   "no labels",
			output: "null\n",
			want:   map[string]string{},
		},
		{
			name:    "docker missing image",
			failure: "Error: No such image: habitat-x:1-base",
			wantErr: ErrNoSuchImage,
		},
		{
			name:    "docker missing object",
			failure: "Error: No such object: habitat-x:1-base",
			wantErr: ErrNoSuchImage,
		},
		{
			name:    "podman missing image",
			failure: "Error: habitat-x:1-base: image not known",
			wantErr: ErrNoSuchImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, exec := newTestDocker()
			if tt.failure != "" {
				exec.AddFailure("docker image inspect", tt.failure)
			} else {
				exec.AddResponse("docker image inspect", []byte(tt.output), nil)
			}

			got, err := d.InspectLabels(context.Background(), "habitat-x:1-base")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocker_InspectLabels_OtherFailure(t *testing.T) {
	d, exec := newTestDocker()
	exec.AddFailure("docker image inspect", "Cannot connect to the Docker daemon")

	_, err := d.InspectLabels(context.Background(), "habitat-x:1-base")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSuchImage, "daemon failure must not be reported as a missing image")
}

func TestDocker_RemoveImage(t *testing.T) {
	d, exec := newTestDocker()
	exec.AddFailure("docker image rm", "Error: No such image: habitat-x:9-gone")

	assert.ErrorIs(t, d.RemoveImage(context.Background(), "habitat-x:9-gone"), ErrNoSuchImage)

	exec.AddFailure("docker image rm", "conflict: unable to remove repository reference")
	err := d.RemoveImage(context.Background(), "habitat-x:1-base")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSuchImage)
}

func TestDocker_ListImages(t *testing.T) {
	d, exec := newTestDocker()
	output := strings.Join([]string{
		"habitat-x\t1-base\t2024-03-01 10:00:00 +0000 UTC",
		"localhost/habitat-x\t2-users\t2024-03-01 10:05:00.123456 +0000 UTC",
		"habitat-x\t<none>\t2024-03-01 09:00:00 +0000 UTC",
		"",
	}, "\n")
	exec.AddResponse("docker images", []byte(output), nil)

	images, err := d.ListImages(context.Background(), "habitat-x")
	require.NoError(t, err)

	require.Len(t, images, 2)
	assert.Equal(t, "habitat-x:1-base", images[0].Ref())
	assert.Equal(t, "habitat-x:2-users", images[1].Ref())
	assert.True(t, images[0].CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)), "CreatedAt = %v", images[0].CreatedAt)
	assert.False(t, images[1].CreatedAt.IsZero(), "fractional-second timestamp should parse")

	cmd, _ := exec.LastCommand()
	assert.Equal(t, "habitat-x", cmd.Args[len(cmd.Args)-1])
}

func TestDocker_RunContainer(t *testing.T) {
	d, exec := newTestDocker()
	exec.AddResponse("docker run", []byte("abc123\n"), nil)

	id, err := d.RunContainer(context.Background(), RunOptions{
		Name:  "habitat-x-build",
		Image: "ubuntu:22.04",
		User:  "root",
		Env:   []string{"A=1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	cmd, _ := exec.LastCommand()
	assert.Equal(t, "docker run -d --name habitat-x-build --user root -e A=1 --entrypoint sleep ubuntu:22.04 infinity", cmd.Line())
}

func TestDocker_Exec(t *testing.T) {
	d, exec := newTestDocker()
	exec.AddResponse("docker exec", []byte("ok\n"), nil)

	result, err := d.Exec(context.Background(), "c1", []string{"sh", "-c", "true"}, ExecOptions{
		User:       "dev",
		WorkingDir: "/src",
		Env:        []string{"X=1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "ok\n", result.Stdout)

	cmd, _ := exec.LastCommand()
	assert.Equal(t, "docker exec -u dev -w /src -e X=1 c1 sh -c true", cmd.Line())
}

func TestDocker_Exec_WithStdin(t *testing.T) {
	d, exec := newTestDocker()

	_, err := d.Exec(context.Background(), "c1", []string{"sh"}, ExecOptions{Stdin: strings.NewReader("echo hi")})
	require.NoError(t, err)

	cmd, _ := exec.LastCommand()
	assert.Equal(t, "-i", cmd.Args[1])
	assert.Equal(t, "echo hi", cmd.Stdin)
}

func TestDocker_Exec_EngineFailure(t *testing.T) {
	d, exec := newTestDocker()
	exec.AddResponse("docker exec", nil, errors.New("executable file not found"))

	_, err := d.Exec(context.Background(), "c1", []string{"true"}, ExecOptions{})
	assert.Error(t, err, "the engine cannot be invoked")
}

func TestDocker_RemoveContainer_IgnoresMissing(t *testing.T) {
	d, exec := newTestDocker()
	exec.AddFailure("docker rm", "Error: No such container: c1")

	assert.NoError(t, d.RemoveContainer(context.Background(), "c1"))
}

func TestDocker_Interface(t *testing.T) {
	var _ Engine = (*Docker)(nil)
}
