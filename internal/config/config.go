package config

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// habitatNameRegex validates habitat names.
// Names become part of image repositories, so they must start with a
// lowercase letter or digit, followed by lowercase letters, digits,
// underscores, or hyphens. Maximum length is 63 characters.
var habitatNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// userNameRegex matches names accepted by useradd.
var userNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ValidateHabitatName checks if a habitat name is valid.
func ValidateHabitatName(habitat string) error {
	if habitat == "" {
		return fmt.Errorf("habitat name cannot be empty")
	}

	if !habitatNameRegex.MatchString(habitat) {
		return fmt.Errorf("invalid habitat name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", habitat)
	}

	return nil
}

// Habitat is a habitat definition loaded from YAML.
type Habitat struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Image       string          `yaml:"image"`
	Container   ContainerConfig `yaml:"container,omitempty"`
	// Env entries are KEY=VALUE pairs exported in the container.
	Env    []string     `yaml:"env,omitempty"`
	Users  []UserConfig `yaml:"users,omitempty"`
	Files  []FileConfig `yaml:"files,omitempty"`
	Repos  []RepoConfig `yaml:"repos,omitempty"`
	Setup  SetupConfig  `yaml:"setup,omitempty"`
	Verify []string     `yaml:"verify,omitempty"`
	// Phases holds per-phase execution overrides keyed by phase name.
	Phases map[string]PhaseOverride `yaml:"phases,omitempty"`

	// Dir is the directory of the habitat file; file sources resolve in it.
	Dir string `yaml:"-"`
}

// ContainerConfig describes the runtime identity used by later phases.
type ContainerConfig struct {
	User    string `yaml:"user,omitempty"`
	WorkDir string `yaml:"workdir,omitempty"`
}

// UserConfig describes an account created in the users phase.
type UserConfig struct {
	Name   string   `yaml:"name"`
	UID    int      `yaml:"uid,omitempty"`
	Shell  string   `yaml:"shell,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
	Sudo   bool     `yaml:"sudo,omitempty"`
}

// FileConfig copies a host file, relative to the habitat directory, into
// the container.
type FileConfig struct {
	Src   string `yaml:"src"`
	Dest  string `yaml:"dest"`
	Owner string `yaml:"owner,omitempty"`
	Mode  string `yaml:"mode,omitempty"`
}

// RepoConfig clones a git repository into the container.
type RepoConfig struct {
	URL    string `yaml:"url"`
	Path   string `yaml:"path"`
	Branch string `yaml:"branch,omitempty"`
}

// SetupConfig holds free-form setup scripts.
type SetupConfig struct {
	// Root scripts run as root.
	Root []string `yaml:"root,omitempty"`
	// User scripts run as the container user in the work directory.
	User []string `yaml:"user,omitempty"`
}

// PhaseOverride adjusts how a phase executes. It never affects the hash.
type PhaseOverride struct {
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	NoSnapshot bool          `yaml:"no_snapshot,omitempty"`
}

// Load reads and validates a habitat definition.
func Load(fs system.FileSystem, habitatPath string) (*Habitat, error) {
	if fs == nil {
		fs = system.DefaultFS()
	}

	data, err := fs.ReadFile(habitatPath)
	if err != nil {
		return nil, herrors.ConfigError(fmt.Sprintf("failed to read habitat file %s", habitatPath), err)
	}

	h, err := Parse(data)
	if err != nil {
		return nil, herrors.ConfigError(fmt.Sprintf("invalid habitat file %s", habitatPath), err)
	}

	dir, err := filepath.Abs(filepath.Dir(habitatPath))
	if err != nil {
		return nil, herrors.ConfigError("failed to resolve habitat directory", err)
	}
	h.Dir = dir

	return h, nil
}

// Parse decodes and validates a habitat definition. Unknown keys are
// rejected.
func Parse(data []byte) (*Habitat, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var h Habitat
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to parse habitat: %w", err)
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	return &h, nil
}

// Validate checks that the Habitat is valid.
func (h *Habitat) Validate() error {
	if err := ValidateHabitatName(h.Name); err != nil {
		return err
	}

	if h.Image == "" {
		return fmt.Errorf("image is required")
	}
	if _, err := name.ParseReference(h.Image); err != nil {
		return fmt.Errorf("invalid image %q: %w", h.Image, err)
	}

	if h.Container.WorkDir != "" && !path.IsAbs(h.Container.WorkDir) {
		return fmt.Errorf("container.workdir must be an absolute path (got %q)", h.Container.WorkDir)
	}

	for _, env := range h.Env {
		key, _, ok := strings.Cut(env, "=")
		if !ok || key == "" {
			return fmt.Errorf("env entry %q must be KEY=VALUE", env)
		}
	}

	seen := make(map[string]bool)
	for _, u := range h.Users {
		if !userNameRegex.MatchString(u.Name) {
			return fmt.Errorf("invalid user name %q", u.Name)
		}
		if seen[u.Name] {
			return fmt.Errorf("user %q is defined twice", u.Name)
		}
		seen[u.Name] = true
		if u.UID < 0 {
			return fmt.Errorf("user %s: uid must not be negative", u.Name)
		}
	}

	for i, f := range h.Files {
		if f.Src == "" {
			return fmt.Errorf("files[%d]: src is required", i)
		}
		if !path.IsAbs(f.Dest) {
			return fmt.Errorf("files[%d]: dest must be an absolute path (got %q)", i, f.Dest)
		}
	}

	for i, r := range h.Repos {
		if r.URL == "" {
			return fmt.Errorf("repos[%d]: url is required", i)
		}
		if !path.IsAbs(r.Path) {
			return fmt.Errorf("repos[%d]: path must be an absolute path (got %q)", i, r.Path)
		}
	}

	for phaseName, o := range h.Phases {
		if !isPhaseName(phaseName) {
			return fmt.Errorf("phases: unknown phase %q (known: %s)", phaseName, strings.Join(PhaseNames, ", "))
		}
		if o.Timeout < 0 {
			return fmt.Errorf("phases.%s: timeout must not be negative", phaseName)
		}
	}

	return nil
}

// User returns the user later phases run as, defaulting to root.
func (h *Habitat) User() string {
	if h.Container.User != "" {
		return h.Container.User
	}
	return "root"
}
