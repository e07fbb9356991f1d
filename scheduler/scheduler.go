package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const minInterval = time.Minute

// Scheduler manages a single recurring background job.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// NewScheduler creates an idle scheduler. Call Schedule then Start.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Schedule sets up a job that runs every interval. Rescheduling
// replaces the previous job.
func (s *Scheduler) Schedule(interval time.Duration, fn func()) error {
	if interval < minInterval {
		return fmt.Errorf("interval %s too short (minimum %s)", interval, minInterval)
	}

	spec := fmt.Sprintf("@every %s", interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = entryID

	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cron.Stop()
		s.started = false
	}
}
