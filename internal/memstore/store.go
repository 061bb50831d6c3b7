// Package memstore provides an in-memory, thread-safe implementation of
// store.StrategySourceStore.
//
// Each strategy id gets its own record guarded by its own mutex, held in a
// sync.Map, so saves and error updates for different strategies never
// contend. Contents live only as long as the process; use pgstore for
// anything that must survive a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vk/hotswap/internal/model"
	"github.com/vk/hotswap/internal/store"
)

type record struct {
	mu  sync.Mutex
	src model.StrategySource
}

func (r *record) snapshot() *model.StrategySource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

// copyLocked returns a copy that shares nothing with the record. r.mu must
// be held.
func (r *record) copyLocked() *model.StrategySource {
	cp := r.src
	if r.src.LastCompileError != nil {
		msg := *r.src.LastCompileError
		cp.LastCompileError = &msg
	}
	return &cp
}

// Store keeps strategy sources in memory.
type Store struct {
	records sync.Map // Key: strategy id, Value: *record
}

var _ store.StrategySourceStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) Find(_ context.Context, id string) (*model.StrategySource, error) {
	r, ok := s.records.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.(*record).snapshot(), nil
}

func (s *Store) FindAllWithSource(_ context.Context) ([]*model.StrategySource, error) {
	var out []*model.StrategySource
	s.records.Range(func(_, value any) bool {
		if src := value.(*record).snapshot(); src.HasSource() {
			out = append(out, src)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Save(_ context.Context, id, sourceText string) (*model.StrategySource, error) {
	v, _ := s.records.LoadOrStore(id, &record{src: model.StrategySource{ID: id}})
	r := v.(*record)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.src.SourceText = sourceText
	r.src.UpdateVersion++
	r.src.UpdatedAt = time.Now()
	return r.copyLocked(), nil
}

func (s *Store) SaveCompileError(_ context.Context, id string, version uint64, text string) error {
	return s.setCompileError(id, version, &text)
}

func (s *Store) ClearCompileError(_ context.Context, id string, version uint64) error {
	return s.setCompileError(id, version, nil)
}

func (s *Store) setCompileError(id string, version uint64, text *string) error {
	v, ok := s.records.Load(id)
	if !ok {
		return store.ErrNotFound
	}
	r := v.(*record)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src.UpdateVersion > version {
		return store.ErrStaleVersion
	}
	r.src.LastCompileError = text
	return nil
}
