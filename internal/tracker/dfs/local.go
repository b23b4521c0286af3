// Package dfs implements the distributed filesystem client of spec §6
// against the local disk, standing in for a real hdfs://-style provider.
// Grounded on the teacher's internal/coordinator/core path helpers, which
// resolve job scratch space with the plain os package rather than a
// dedicated storage SDK.
package dfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// Local implements jobtracker.DFS against a directory on the local disk.
// Paths handed to Exist/Remove/OpenWrite are treated as relative to Root,
// mirroring how the teacher's CreateLocalShuffleDir roots every job's
// scratch space under a single os.MkdirTemp directory.
type Local struct {
	Root string
}

// NewLocal returns a Local DFS rooted at root, creating it if missing.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Local{Root: root}, nil
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.Root, filepath.FromSlash(path))
}

func (l *Local) Exist(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Remove(ctx context.Context, path string) error {
	err := os.RemoveAll(l.resolve(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *Local) OpenWrite(ctx context.Context, path string) (jobtracker.WriteCloser, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}
