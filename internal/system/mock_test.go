package system

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFS_ReadWriteFile(t *testing.T) {
	mockFS := NewMockFS()

	require.NoError(t, mockFS.WriteFile("/test/file.txt", []byte("hello world"), 0644))

	data, err := mockFS.ReadFile("/test/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestMockFS_ReadFile_NotExists(t *testing.T) {
	mockFS := NewMockFS()

	_, err := mockFS.ReadFile("/nonexistent")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMockFS_AppendFile(t *testing.T) {
	mockFS := NewMockFS()

	require.NoError(t, mockFS.AppendFile("/log.jsonl", []byte("a\n"), 0644))
	require.NoError(t, mockFS.AppendFile("/log.jsonl", []byte("b\n"), 0644))

	data, _ := mockFS.GetFile("/log.jsonl")
	assert.Equal(t, "a\nb\n", string(data))
}

func TestMockFS_CreateExclusive(t *testing.T) {
	mockFS := NewMockFS()

	require.NoError(t, mockFS.CreateExclusive("/locks/demo.lock", []byte("1"), 0644))

	err := mockFS.CreateExclusive("/locks/demo.lock", []byte("2"), 0644)
	assert.ErrorIs(t, err, fs.ErrExist)

	data, _ := mockFS.GetFile("/locks/demo.lock")
	assert.Equal(t, "1", string(data))
}

func TestMockFS_Stat(t *testing.T) {
	mockFS := NewMockFS()
	mockFS.AddFile("/test/file.txt", []byte("content"), 0644)
	mockFS.AddDir("/test/dir")

	info, err := mockFS.Stat("/test/file.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, "file.txt", info.Name())

	info, err = mockFS.Stat("/test/dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMockFS_Exists(t *testing.T) {
	mockFS := NewMockFS()
	mockFS.AddFile("/file.txt", []byte("x"), 0644)
	mockFS.AddDir("/dir")

	assert.True(t, mockFS.Exists("/file.txt"))
	assert.True(t, mockFS.Exists("/dir"))
	assert.False(t, mockFS.Exists("/nonexistent"))
}

func TestMockFS_Remove(t *testing.T) {
	mockFS := NewMockFS()
	mockFS.AddFile("/file.txt", []byte("x"), 0644)

	require.NoError(t, mockFS.Remove("/file.txt"))
	assert.False(t, mockFS.Exists("/file.txt"))
	assert.ErrorIs(t, mockFS.Remove("/file.txt"), fs.ErrNotExist)
}

func TestMockFS_MkdirAll(t *testing.T) {
	mockFS := NewMockFS()

	require.NoError(t, mockFS.MkdirAll("/a/b/c", 0755))

	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		assert.True(t, mockFS.Exists(dir), dir)
	}
}

func TestMockFS_ErrorInjection(t *testing.T) {
	mockFS := NewMockFS()
	mockFS.ReadFileErr = fs.ErrPermission

	_, err := mockFS.ReadFile("/anything")
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestMockExecutor_Execute(t *testing.T) {
	exec := NewMockExecutor()
	exec.AddResponse("echo", []byte("hello\n"), nil)

	output, err := exec.Execute(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(output))

	cmd, ok := exec.LastCommand()
	require.True(t, ok)
	assert.Equal(t, "echo", cmd.Name)
}

func TestMockExecutor_LongestPrefixWins(t *testing.T) {
	exec := NewMockExecutor()
	exec.AddResponse("docker image", []byte("generic"), nil)
	exec.AddResponse("docker image inspect", []byte("inspect"), nil)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"image", "inspect", "habitat-x:1-base"}, "inspect"},
		{[]string{"image", "rm", "habitat-x:1-base"}, "generic"},
		{[]string{"images"}, ""},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, _ := exec.Execute(context.Background(), "docker", tt.args...)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestMockExecutor_AddFailure(t *testing.T) {
	exec := NewMockExecutor()
	exec.AddFailure("docker image inspect", "Error: No such image: habitat-x:1-base")

	_, err := exec.Execute(context.Background(), "docker", "image", "inspect", "habitat-x:1-base")

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "error = %v, want *CommandError", err)
	assert.Contains(t, cmdErr.Stderr, "No such image")
	assert.Contains(t, err.Error(), "docker image failed")
}

func TestMockExecutor_ExecuteWithStdin(t *testing.T) {
	exec := NewMockExecutor()

	_, err := exec.ExecuteWithStdin(context.Background(), strings.NewReader("payload"), "docker", "exec", "-i", "c1", "sh")
	require.NoError(t, err)

	cmd, _ := exec.LastCommand()
	assert.Equal(t, "payload", cmd.Stdin)
}

func TestMockExecutor_DefaultResponse(t *testing.T) {
	exec := NewMockExecutor()
	exec.DefaultResponse = MockResponse{Output: []byte("default"), Err: nil}

	output, err := exec.Execute(context.Background(), "unknown", "command")
	require.NoError(t, err)
	assert.Equal(t, "default", string(output))
}

func TestMockExecutor_Reset(t *testing.T) {
	exec := NewMockExecutor()
	exec.Execute(context.Background(), "cmd1")
	exec.Execute(context.Background(), "cmd2")

	assert.Len(t, exec.Commands, 2)

	exec.Reset()

	assert.Empty(t, exec.Commands)
}
