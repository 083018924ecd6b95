package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// notFoundMessages are the engine messages that mean an image is absent.
// Docker reports "No such image"/"No such object"; podman reports
// "image not known". Matching is case-insensitive.
var notFoundMessages = []string{
	"no such image",
	"no such object",
	"image not known",
	"image not found",
}

// createdAtLayouts are the CreatedAt formats printed by `images --format`.
var createdAtLayouts = []string{
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
}

// Docker implements the Engine interface using the Docker or Podman CLI.
type Docker struct {
	// Command is the container command to use (docker or podman)
	Command string

	exec system.CommandExecutor
}

// NewDocker creates an engine that shells out to command.
func NewDocker(command string, executor system.CommandExecutor) *Docker {
	if executor == nil {
		executor = system.DefaultExecutor()
	}
	return &Docker{Command: command, exec: executor}
}

// Name returns the engine identifier
func (d *Docker) Name() string {
	return d.Command
}

// runCmd executes a docker/podman command and returns trimmed stdout
func (d *Docker) runCmd(ctx context.Context, args ...string) (string, error) {
	out, err := d.exec.Execute(ctx, d.Command, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// isNotFound reports whether err is an engine failure meaning "no such image".
func isNotFound(err error) bool {
	var cmdErr *system.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	msg := strings.ToLower(cmdErr.Stderr)
	for _, m := range notFoundMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// labelDirective renders a LABEL change for docker commit.
func labelDirective(key, value string) string {
	return fmt.Sprintf("LABEL %s=%s", key, strconv.Quote(value))
}

// Commit snapshots a container into an image under tag
func (d *Docker) Commit(ctx context.Context, container, tag string, opts CommitOptions) error {
	logging.Debug("committing container", "container", container, "tag", tag, "labels", len(opts.Labels))

	args := []string{"commit"}

	keys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--change", labelDirective(k, opts.Labels[k]))
	}
	for _, change := range opts.Changes {
		args = append(args, "--change", change)
	}

	args = append(args, container, tag)

	_, err := d.runCmd(ctx, args...)
	return err
}

// InspectLabels returns the labels of an image
func (d *Docker) InspectLabels(ctx context.Context, tag string) (map[string]string, error) {
	output, err := d.runCmd(ctx, "image", "inspect", "--format", "{{json .Config.Labels}}", tag)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoSuchImage
		}
		return nil, err
	}

	labels := make(map[string]string)
	if output == "" || output == "null" {
		return labels, nil
	}
	if err := json.Unmarshal([]byte(output), &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels for %s: %w", tag, err)
	}
	return labels, nil
}

// RemoveImage deletes an image
func (d *Docker) RemoveImage(ctx context.Context, tag string) error {
	logging.Debug("removing image", "tag", tag)

	_, err := d.runCmd(ctx, "image", "rm", tag)
	if err != nil && isNotFound(err) {
		return ErrNoSuchImage
	}
	return err
}

// ListImages returns all images in a repository
func (d *Docker) ListImages(ctx context.Context, repository string) ([]Image, error) {
	output, err := d.runCmd(ctx, "images", "--format", "{{.Repository}}\t{{.Tag}}\t{{.CreatedAt}}", repository)
	if err != nil {
		return nil, err
	}
	return parseImageList(output), nil
}

// parseImageList parses the tab-separated output of `images --format`.
func parseImageList(output string) []Image {
	var images []Image
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 || fields[1] == "<none>" {
			continue
		}

		img := Image{
			// podman qualifies local images with localhost/
			Repository: strings.TrimPrefix(fields[0], "localhost/"),
			Tag:        fields[1],
		}
		if len(fields) == 3 {
			img.CreatedAt = parseCreatedAt(fields[2])
		}
		images = append(images, img)
	}
	return images
}

func parseCreatedAt(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	logging.Debug("unrecognized image timestamp", "value", value)
	return time.Time{}
}

// RunContainer starts a detached, idle container and returns its ID
func (d *Docker) RunContainer(ctx context.Context, opts RunOptions) (string, error) {
	logging.Debug("starting build container", "name", opts.Name, "image", opts.Image, "engine", d.Command)

	args := []string{"run", "-d"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}
	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}
	args = append(args, "--entrypoint", "sleep", opts.Image, "infinity")

	return d.runCmd(ctx, args...)
}

// Exec executes a command inside a container
func (d *Docker) Exec(ctx context.Context, container string, command []string, opts ExecOptions) (*ExecResult, error) {
	args := []string{"exec"}

	if opts.Stdin != nil {
		args = append(args, "-i")
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}
	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}

	args = append(args, container)
	args = append(args, command...)

	var (
		out []byte
		err error
	)
	if opts.Stdin != nil {
		out, err = d.exec.ExecuteWithStdin(ctx, opts.Stdin, d.Command, args...)
	} else {
		out, err = d.exec.Execute(ctx, d.Command, args...)
	}

	result := &ExecResult{Stdout: string(out)}
	if err != nil {
		var cmdErr *system.CommandError
		var exitErr *exec.ExitError
		if errors.As(err, &cmdErr) && errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Stderr = cmdErr.Stderr
			return result, nil
		}
		return result, fmt.Errorf("exec failed: %w", err)
	}

	return result, nil
}

// CopyTo copies a host path into a container
func (d *Docker) CopyTo(ctx context.Context, container, src, dest string) error {
	logging.Debug("copying into container", "container", container, "src", src, "dest", dest)

	_, err := d.runCmd(ctx, "cp", src, container+":"+dest)
	return err
}

// RemoveContainer force-removes a container
func (d *Docker) RemoveContainer(ctx context.Context, container string) error {
	logging.Debug("removing container", "container", container)

	_, err := d.runCmd(ctx, "rm", "-f", container)
	if err != nil {
		// Ignore "no such container" errors
		var cmdErr *system.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(strings.ToLower(cmdErr.Stderr), "no such container") {
			return nil
		}
	}
	return err
}

// Ensure Docker implements Engine
var _ Engine = (*Docker)(nil)
