package onboarding

import "sync"

// userLocks serializes the resolve-transition-save cycle per user. Two
// interleaved read-modify-write cycles on the same record would lose the
// earlier write otherwise.
type userLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{
		entries: make(map[string]*lockEntry),
	}
}

// Lock acquires the mutex for key and returns its unlock function. Entries
// are refcounted so the map does not grow with every user ever seen.
func (l *userLocks) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
