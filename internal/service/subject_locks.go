package service

import "sync"

// SubjectLocks serializes mutations per subject. Presence writes, pause or
// resume toggles, and consent changes for the same subject must not
// interleave, so the presence and consent services share one registry;
// reads never take these locks.
type SubjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSubjectLocks builds an empty registry.
func NewSubjectLocks() *SubjectLocks {
	return &SubjectLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the subject and returns its unlock function.
func (l *SubjectLocks) Lock(subjectID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[subjectID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
