package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// File implements jobtracker.Store by writing one YAML document per job
// under Dir, the on-disk counterpart to InMemory. YAML rather than JSON to
// match the teacher's config-file convention (spf13/viper reading
// coordinator.yaml/worker.yaml), so checkpoints and config share a format
// across the repo.
type File struct {
	mu  sync.Mutex
	Dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{Dir: dir}, nil
}

func (f *File) path(jobID string) string {
	return filepath.Join(f.Dir, jobID+".yaml")
}

func (f *File) SaveJob(jobID string, cp jobtracker.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("storage: marshal checkpoint for %q: %w", jobID, err)
	}
	tmp := f.path(jobID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write checkpoint for %q: %w", jobID, err)
	}
	return os.Rename(tmp, f.path(jobID))
}

func (f *File) LoadJob(jobID string) (jobtracker.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cp jobtracker.Checkpoint
	data, err := os.ReadFile(f.path(jobID))
	if err != nil {
		return cp, fmt.Errorf("storage: read checkpoint for %q: %w", jobID, err)
	}
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("storage: unmarshal checkpoint for %q: %w", jobID, err)
	}
	return cp, nil
}
