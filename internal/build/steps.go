package build

import (
	"context"
	"fmt"
	"path"
	"strings"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/bitmage/claude-habitat-sub001/internal/engine"
	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
	"github.com/bitmage/claude-habitat-sub001/internal/phase"
)

// StepError reports a phase command that exited non-zero.
type StepError struct {
	Phase    string
	Command  string
	ExitCode int
	Stderr   string
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: command exited with status %d", e.Phase, e.ExitCode)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// runStep performs one step of a phase inside the build container.
func (b *Builder) runStep(ctx context.Context, container, phaseName string, env []string, step phase.Step) error {
	switch step.Kind {
	case phase.StepExec:
		return b.exec(ctx, container, phaseName, step.Argv(), step.Script, engine.ExecOptions{
			User:       step.User,
			WorkingDir: step.WorkDir,
			Env:        env,
		})
	case phase.StepCopy:
		return b.copyFile(ctx, container, phaseName, step)
	default:
		return fmt.Errorf("%s: unknown step kind %q", phaseName, step.Kind)
	}
}

func (b *Builder) copyFile(ctx context.Context, container, phaseName string, step phase.Step) error {
	asRoot := engine.ExecOptions{User: "root"}

	if err := b.run(ctx, container, phaseName, asRoot, "mkdir", "-p", path.Dir(step.Dest)); err != nil {
		return err
	}

	logging.Debug("copying file", "phase", phaseName, "src", step.Src, "dest", step.Dest)
	if err := b.engine.CopyTo(ctx, container, step.Src, step.Dest); err != nil {
		return herrors.EngineFailed("copy "+step.Src, err)
	}

	if step.Owner != "" {
		if err := b.run(ctx, container, phaseName, asRoot, "chown", step.Owner, step.Dest); err != nil {
			return err
		}
	}
	if step.Mode != "" {
		if err := b.run(ctx, container, phaseName, asRoot, "chmod", step.Mode, step.Dest); err != nil {
			return err
		}
	}
	return nil
}

// run executes argv directly, without a shell.
func (b *Builder) run(ctx context.Context, container, phaseName string, opts engine.ExecOptions, argv ...string) error {
	return b.exec(ctx, container, phaseName, argv, shellquote.Join(argv...), opts)
}

func (b *Builder) exec(ctx context.Context, container, phaseName string, argv []string, display string, opts engine.ExecOptions) error {
	logging.Debug("running step", "phase", phaseName, "user", opts.User, "command", display)

	res, err := b.engine.Exec(ctx, container, argv, opts)
	if err != nil {
		return herrors.EngineFailed("exec in "+container, err)
	}

	if out := strings.TrimSpace(res.Stdout); out != "" {
		logging.Debug("step output", "phase", phaseName, "stdout", out)
	}

	if res.ExitCode != 0 {
		return &StepError{
			Phase:    phaseName,
			Command:  display,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}
	return nil
}
