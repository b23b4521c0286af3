// Package storage implements the Store collaborator of spec §6:
// persistence for job Checkpoints. Grounded on the teacher's
// InMemoryJobStore (internal/coordinator/storage/memory.go) for the
// in-memory variant, and on its viper-based config file handling for the
// on-disk YAML variant.
package storage

import (
	"fmt"
	"sync"

	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// InMemory implements jobtracker.Store by holding checkpoints in a map
// guarded by a mutex, the same shape as the teacher's InMemoryJobStore.
type InMemory struct {
	mu   sync.RWMutex
	jobs map[string]jobtracker.Checkpoint
}

func NewInMemory() *InMemory {
	return &InMemory{jobs: make(map[string]jobtracker.Checkpoint)}
}

func (s *InMemory) SaveJob(jobID string, cp jobtracker.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = cp
	return nil
}

func (s *InMemory) LoadJob(jobID string) (jobtracker.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.jobs[jobID]
	if !ok {
		return jobtracker.Checkpoint{}, fmt.Errorf("storage: no checkpoint for job %q", jobID)
	}
	return cp, nil
}

// List returns every job id currently checkpointed, for a host that needs
// to rehydrate all live jobs at startup.
func (s *InMemory) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}
