package config

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	shellquote "github.com/kballard/go-shellquote"

	"github.com/bitmage/claude-habitat-sub001/internal/phase"
)

// Phase names in build order.
const (
	PhaseBase    = "base"
	PhaseUsers   = "users"
	PhaseEnv     = "env"
	PhaseWorkdir = "workdir"
	PhaseFiles   = "files"
	PhaseRepos   = "repos"
	PhaseSetup   = "setup"
	PhaseVerify  = "verify"
)

// PhaseNames lists every phase in build order.
var PhaseNames = []string{
	PhaseBase,
	PhaseUsers,
	PhaseEnv,
	PhaseWorkdir,
	PhaseFiles,
	PhaseRepos,
	PhaseSetup,
	PhaseVerify,
}

// EnvProfile is where the env phase writes exported variables.
const EnvProfile = "/etc/profile.d/habitat-env.sh"

func isPhaseName(n string) bool {
	for _, p := range PhaseNames {
		if p == n {
			return true
		}
	}
	return false
}

// PhaseSpecs expands the habitat into its ordered phase specs.
// Every phase is always present, even when it has no steps, so phase IDs
// are stable across configuration changes.
func (h *Habitat) PhaseSpecs() ([]phase.Spec, error) {
	files, err := h.fileSteps()
	if err != nil {
		return nil, err
	}

	specs := []phase.Spec{
		{Name: PhaseBase, Inputs: []string{"image=" + h.Image}},
		{Name: PhaseUsers, Steps: h.userSteps()},
		{Name: PhaseEnv, Steps: h.envSteps()},
		{Name: PhaseWorkdir, Steps: h.workdirSteps()},
		{Name: PhaseFiles, Steps: files},
		{Name: PhaseRepos, Steps: h.repoSteps()},
		{Name: PhaseSetup, Steps: h.setupSteps()},
		{Name: PhaseVerify, Steps: h.verifySteps()},
	}

	for i := range specs {
		if o, ok := h.Phases[specs[i].Name]; ok {
			specs[i].Timeout = o.Timeout
			specs[i].NoSnapshot = o.NoSnapshot
		}
	}

	return specs, nil
}

func rootStep(argv ...string) phase.Step {
	return phase.Step{Kind: phase.StepExec, Script: shellquote.Join(argv...), User: "root"}
}

func (h *Habitat) userSteps() []phase.Step {
	var steps []phase.Step
	for _, u := range h.Users {
		args := []string{"useradd", "-m"}
		shell := u.Shell
		if shell == "" {
			shell = "/bin/bash"
		}
		args = append(args, "-s", shell)
		if u.UID > 0 {
			args = append(args, "-u", strconv.Itoa(u.UID))
		}
		if len(u.Groups) > 0 {
			args = append(args, "-G", strings.Join(u.Groups, ","))
		}
		args = append(args, u.Name)

		script := fmt.Sprintf("id -u %s >/dev/null 2>&1 || %s", shellquote.Join(u.Name), shellquote.Join(args...))
		steps = append(steps, phase.Step{Kind: phase.StepExec, Script: script, User: "root"})

		if u.Sudo {
			rule := u.Name + " ALL=(ALL) NOPASSWD:ALL"
			sudoers := path.Join("/etc/sudoers.d", u.Name)
			steps = append(steps, phase.Step{
				Kind:   phase.StepExec,
				Script: fmt.Sprintf("%s > %s && chmod 0440 %s", shellquote.Join("echo", rule), shellquote.Join(sudoers), shellquote.Join(sudoers)),
				User:   "root",
			})
		}
	}
	return steps
}

func (h *Habitat) envSteps() []phase.Step {
	if len(h.Env) == 0 {
		return nil
	}

	lines := make([]string, 0, len(h.Env))
	for _, env := range h.Env {
		key, value, _ := strings.Cut(env, "=")
		lines = append(lines, "export "+key+"="+shellquote.Join(value))
	}

	args := append([]string{"printf", `%s\n`}, lines...)
	return []phase.Step{{
		Kind:   phase.StepExec,
		Script: shellquote.Join(args...) + " > " + EnvProfile,
		User:   "root",
	}}
}

func (h *Habitat) workdirSteps() []phase.Step {
	dir := h.Container.WorkDir
	if dir == "" {
		return nil
	}

	steps := []phase.Step{rootStep("mkdir", "-p", dir)}
	if user := h.User(); user != "root" {
		steps = append(steps, rootStep("chown", user+":", dir))
	}
	return steps
}

// fileSteps resolves every file source inside the habitat directory.
func (h *Habitat) fileSteps() ([]phase.Step, error) {
	var steps []phase.Step
	for _, f := range h.Files {
		src, err := securejoin.SecureJoin(h.Dir, f.Src)
		if err != nil {
			return nil, fmt.Errorf("resolve file %s: %w", f.Src, err)
		}

		owner := f.Owner
		if owner == "" && h.User() != "root" {
			owner = h.User()
		}
		steps = append(steps, phase.Step{
			Kind:  phase.StepCopy,
			Src:   src,
			Dest:  f.Dest,
			Owner: owner,
			Mode:  f.Mode,
		})
	}
	return steps, nil
}

func (h *Habitat) repoSteps() []phase.Step {
	var steps []phase.Step
	for _, r := range h.Repos {
		args := []string{"git", "clone"}
		if r.Branch != "" {
			args = append(args, "--branch", r.Branch)
		}
		args = append(args, r.URL, r.Path)

		script := fmt.Sprintf("test -d %s || %s", shellquote.Join(path.Join(r.Path, ".git")), shellquote.Join(args...))
		steps = append(steps, phase.Step{Kind: phase.StepExec, Script: script, User: h.User()})
	}
	return steps
}

func (h *Habitat) setupSteps() []phase.Step {
	var steps []phase.Step
	for _, script := range h.Setup.Root {
		steps = append(steps, phase.Step{Kind: phase.StepExec, Script: script, User: "root"})
	}
	for _, script := range h.Setup.User {
		steps = append(steps, phase.Step{Kind: phase.StepExec, Script: script, User: h.User(), WorkDir: h.Container.WorkDir})
	}
	return steps
}

func (h *Habitat) verifySteps() []phase.Step {
	var steps []phase.Step
	for _, script := range h.Verify {
		steps = append(steps, phase.Step{Kind: phase.StepExec, Script: script, User: h.User(), WorkDir: h.Container.WorkDir})
	}
	return steps
}

// RuntimeEnv returns the container environment, sorted by key.
func (h *Habitat) RuntimeEnv() []string {
	env := append([]string(nil), h.Env...)
	sort.Strings(env)
	return env
}
