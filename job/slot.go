package job

import (
	"sync"
)

// Slot is the exclusivity primitive ensuring only one job executes at a
// time. A single lock guards both the check and the set, so two racing
// submissions can never both win; the loser gets a definite "busy" answer,
// never a queued or delayed one.
type Slot struct {
	mu     sync.Mutex
	active *Job
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// TryAcquire attempts to transition the slot from empty to holding j.
// Returns whether it succeeded.
func (s *Slot) TryAcquire(j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return false
	}
	s.active = j
	return true
}

// Release empties the slot unconditionally. Must be called exactly once
// per successful TryAcquire, even if the job's execution failed.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// Active returns the currently held job, or nil when the slot is empty.
func (s *Slot) Active() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
