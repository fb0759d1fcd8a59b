package orchestrator

import "sync"

// projectLocks hands out one mutex per project id. Locks are never
// removed; the set of active projects is small relative to memory and
// a reused id must map to the same mutex.
type projectLocks struct {
	locks sync.Map
}

// acquire locks the project's mutex and returns the unlock function.
func (l *projectLocks) acquire(projectID string) func() {
	v, _ := l.locks.LoadOrStore(projectID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
