// Package engine defines the container engine contract habitat builds on.
// Snapshot storage and build execution only ever talk to an Engine, which
// keeps docker/podman specifics (and their error text) in one place.
package engine

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNoSuchImage is returned when an image tag does not exist.
// Callers branch on it with errors.Is instead of parsing engine output.
var ErrNoSuchImage = errors.New("no such image")

// Image is one entry returned by ListImages.
type Image struct {
	Repository string
	Tag        string
	CreatedAt  time.Time
}

// Ref returns the repository:tag reference of the image.
func (i Image) Ref() string {
	return i.Repository + ":" + i.Tag
}

// CommitOptions controls how a container is committed into an image.
type CommitOptions struct {
	// Labels are applied to the new image.
	Labels map[string]string

	// Changes are extra Dockerfile directives (e.g. "WORKDIR /src").
	Changes []string
}

// RunOptions holds options for starting a build container.
type RunOptions struct {
	Name  string
	Image string
	User  string
	Env   []string
}

// ExecOptions holds options for executing a command in a container
type ExecOptions struct {
	User       string    // User to run as
	WorkingDir string    // Working directory
	Env        []string  // Environment variables
	Stdin      io.Reader // Standard input
}

// ExecResult holds the result of executing a command in a container
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Engine is the interface container backends must implement.
type Engine interface {
	// Name returns the engine identifier (e.g., "docker", "podman")
	Name() string

	// Commit snapshots a container into an image under tag.
	Commit(ctx context.Context, container, tag string, opts CommitOptions) error

	// InspectLabels returns the labels of an image.
	// Returns ErrNoSuchImage when the tag does not exist.
	InspectLabels(ctx context.Context, tag string) (map[string]string, error)

	// RemoveImage deletes an image.
	// Returns ErrNoSuchImage when the tag does not exist.
	RemoveImage(ctx context.Context, tag string) error

	// ListImages returns all images in a repository.
	ListImages(ctx context.Context, repository string) ([]Image, error)

	// RunContainer starts a detached, idle container and returns its ID.
	RunContainer(ctx context.Context, opts RunOptions) (string, error)

	// Exec executes a command inside a running container.
	// A non-zero exit code is reported in the result, not as an error.
	Exec(ctx context.Context, container string, command []string, opts ExecOptions) (*ExecResult, error)

	// CopyTo copies a host path into a container.
	CopyTo(ctx context.Context, container, src, dest string) error

	// RemoveContainer force-removes a container.
	RemoveContainer(ctx context.Context, container string) error
}
