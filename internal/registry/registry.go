package registry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vk/hotswap/internal/model"
)

// Entry is one published artifact together with the version it was
// published at.
type Entry struct {
	Artifact *model.CompiledArtifact
	Version  uint64
}

// slot is the per-id state. current is read without locking; mu serializes
// writers of this id only.
type slot struct {
	mu      sync.Mutex
	current atomic.Pointer[Entry]
	// floor is the highest version published or removed so far. A publish
	// must exceed it. seen is false until the first publish.
	floor uint64
	seen  bool
}

// Registry is a concurrent map from strategy id to its published artifact.
// The zero value is not usable; create one with New.
type Registry struct {
	slots sync.Map // Key: strategy id, Value: *slot
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

func (r *Registry) slot(id string) *slot {
	if s, ok := r.slots.Load(id); ok {
		return s.(*slot)
	}
	s, _ := r.slots.LoadOrStore(id, &slot{})
	return s.(*slot)
}

// Publish installs artifact for id if version is strictly greater than every
// version the id has seen, including the version of a removed entry. It
// reports whether the artifact was installed. A rejected publish is a lost
// race, not an error.
func (r *Registry) Publish(id string, artifact *model.CompiledArtifact, version uint64) bool {
	if artifact == nil {
		return false
	}
	s := r.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen && version <= s.floor {
		return false
	}
	s.floor = version
	s.seen = true
	s.current.Store(&Entry{Artifact: artifact, Version: version})
	return true
}

// Lookup returns the artifact currently serving for id.
func (r *Registry) Lookup(id string) (*model.CompiledArtifact, bool) {
	e, ok := r.entry(id)
	if !ok {
		return nil, false
	}
	return e.Artifact, true
}

// Version returns the version of the artifact currently serving for id.
func (r *Registry) Version(id string) (uint64, bool) {
	e, ok := r.entry(id)
	if !ok {
		return 0, false
	}
	return e.Version, true
}

func (r *Registry) entry(id string) (*Entry, bool) {
	v, ok := r.slots.Load(id)
	if !ok {
		return nil, false
	}
	e := v.(*slot).current.Load()
	return e, e != nil
}

// Remove deletes the entry for id and reports whether one existed. The
// removed version stays as a floor so a slow compile of an older submission
// cannot bring the entry back.
func (r *Registry) Remove(id string) bool {
	v, ok := r.slots.Load(id)
	if !ok {
		return false
	}
	s := v.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.Swap(nil) != nil
}

// RemoveThrough deletes the entry for id and raises its floor to version, so
// compiles of any submission up to and including version are discarded even
// if they are still running.
func (r *Registry) RemoveThrough(id string, version uint64) bool {
	s := r.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seen || version > s.floor {
		s.floor = version
	}
	s.seen = true
	return s.current.Swap(nil) != nil
}

// ListIDs returns a sorted snapshot of the ids with a published artifact.
func (r *Registry) ListIDs() []string {
	var ids []string
	r.slots.Range(func(key, value any) bool {
		if value.(*slot).current.Load() != nil {
			ids = append(ids, key.(string))
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

// Len returns the number of ids with a published artifact.
func (r *Registry) Len() int {
	n := 0
	r.slots.Range(func(_, value any) bool {
		if value.(*slot).current.Load() != nil {
			n++
		}
		return true
	})
	return n
}
