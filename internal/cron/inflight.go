package cron

import (
	"sort"
	"sync"
)

// InFlight is the set of channel IDs with a scheduled purge running or
// cooling down. It is owned by one Scheduler and never persisted.
type InFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewInFlight creates an empty set.
func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[string]struct{})}
}

// TryAcquire adds id and reports true, or reports false if id is already held.
func (f *InFlight) TryAcquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; ok {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

// Release removes id.
func (f *InFlight) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

// Contains reports whether id is held.
func (f *InFlight) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[id]
	return ok
}

// IDs returns the held IDs in sorted order.
func (f *InFlight) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
