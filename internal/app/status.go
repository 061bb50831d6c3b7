package app

import (
	"sync"

	"github.com/vk/hotswap/internal/model"
)

type statusEntry struct {
	state model.State
	// version is the submission that last moved state.
	version uint64
	// Attempts up to floor were superseded by a removal.
	floor   uint64
	removed bool
}

// statusTracker follows the latest load attempt of every strategy. An attempt
// only moves the state if no newer attempt or removal has been seen.
type statusTracker struct {
	mu      sync.Mutex
	entries map[string]*statusEntry
}

func newStatusTracker() *statusTracker {
	return &statusTracker{entries: make(map[string]*statusEntry)}
}

func (t *statusTracker) entry(id string) *statusEntry {
	e, ok := t.entries[id]
	if !ok {
		e = &statusEntry{state: model.Unloaded}
		t.entries[id] = e
	}
	return e
}

func (t *statusTracker) superseded(e *statusEntry, version uint64) bool {
	if e.removed && version <= e.floor {
		return true
	}
	return version < e.version
}

func (t *statusTracker) compiling(id string, version uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(id)
	if t.superseded(e, version) {
		return
	}
	e.state = model.Compiling
	e.version = version
}

func (t *statusTracker) finish(id string, version uint64, out model.CompileOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(id)
	if t.superseded(e, version) {
		return
	}
	switch {
	case out.Success && out.Published:
		e.state = model.Loaded
	case out.Success:
		// Lost the publish race to a newer version.
		return
	default:
		e.state = model.FailedKeepingPrevious
	}
	e.version = version
}

func (t *statusTracker) remove(id string, version uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(id)
	e.state = model.Unloaded
	if !e.removed || version > e.floor {
		e.floor = version
	}
	e.removed = true
	if version > e.version {
		e.version = version
	}
}

func (t *statusTracker) get(id string) model.State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[id]; ok {
		return e.state
	}
	return model.Unloaded
}
