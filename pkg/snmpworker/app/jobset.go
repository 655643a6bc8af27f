package app

import (
	"sync"

	"github.com/gralabs/snmpworker/models"
)

// jobSet holds the current job discovery result behind a mutex so the
// reconcile loop always sees the latest set without racing the refresh
// loop that replaces it.
type jobSet struct {
	mu   sync.RWMutex
	jobs []models.JobPayload
}

func newJobSet(jobs []models.JobPayload) *jobSet {
	return &jobSet{jobs: jobs}
}

func (s *jobSet) Get() []models.JobPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.JobPayload, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *jobSet) Set(jobs []models.JobPayload) {
	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
}
