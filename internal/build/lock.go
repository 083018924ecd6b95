package build

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
)

// lockPath returns the lock file of a habitat.
func (b *Builder) lockPath(habitat string) string {
	return filepath.Join(b.locksDir, habitat+".lock")
}

// acquireLock takes the per-habitat build lock. Snapshot tags are shared
// by every build of a habitat, so only one build or clean may write them
// at a time.
func (b *Builder) acquireLock(habitat, owner string) (release func(), err error) {
	if err := b.fsys.MkdirAll(b.locksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create locks directory: %w", err)
	}

	path := b.lockPath(habitat)
	content := fmt.Sprintf("%s %d\n", owner, os.Getpid())
	if err := b.fsys.CreateExclusive(path, []byte(content), 0644); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, herrors.Locked(habitat)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	logging.Debug("acquired habitat lock", "habitat", habitat, "path", path)

	return func() {
		if err := b.fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("failed to release habitat lock", "path", path, "error", err)
		}
	}, nil
}
