// Package store defines where strategy sources and their compile errors are
// persisted.
package store

import (
	"context"
	"errors"

	"github.com/vk/hotswap/internal/model"
)

var (
	// ErrNotFound is returned when no source exists for an id.
	ErrNotFound = errors.New("strategy source not found")
	// ErrStaleVersion is returned when a compile error update names a version
	// older than the stored source.
	ErrStaleVersion = errors.New("strategy source has a newer version")
)

// StrategySourceStore persists strategy source text and the last compile
// error for each strategy.
type StrategySourceStore interface {
	// Find returns the source for id, or ErrNotFound.
	Find(ctx context.Context, id string) (*model.StrategySource, error)
	// FindAllWithSource returns every source with non-blank text, ordered by
	// id.
	FindAllWithSource(ctx context.Context) ([]*model.StrategySource, error)
	// Save creates or replaces the text for id and bumps its UpdateVersion.
	// The stored compile error is left as is.
	Save(ctx context.Context, id, sourceText string) (*model.StrategySource, error)
	// SaveCompileError records text as the last compile error of id. It
	// returns ErrStaleVersion and changes nothing when the source has been
	// saved again since version.
	SaveCompileError(ctx context.Context, id string, version uint64, text string) error
	// ClearCompileError removes the last compile error of id, under the same
	// version check as SaveCompileError.
	ClearCompileError(ctx context.Context, id string, version uint64) error
}
