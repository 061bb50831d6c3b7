package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/model"
	"github.com/vk/hotswap/internal/store"
	"github.com/vk/hotswap/internal/worker"
)

// ErrNoSource is returned when a strategy has no source text to compile.
var ErrNoSource = errors.New("strategy has no source text")

// Submit stores text as the new source of id and queues a compile of it. The
// returned channel receives the outcome once the compile finishes.
func (a *App) Submit(ctx context.Context, id, text string) (<-chan model.CompileOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("strategy %q: %w", id, ErrNoSource)
	}
	src, err := a.store.Save(ctx, id, text)
	if err != nil {
		return nil, fmt.Errorf("failed to save strategy %q: %w", id, err)
	}
	return a.enqueue(ctx, src)
}

// Reload compiles the stored source of id again under a new version, so it
// wins over any compile still in flight and can republish after Remove.
func (a *App) Reload(ctx context.Context, id string) (<-chan model.CompileOutcome, error) {
	src, err := a.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload strategy %q: %w", id, err)
	}
	if !src.HasSource() {
		return nil, fmt.Errorf("strategy %q: %w", id, ErrNoSource)
	}
	src, err = a.store.Save(ctx, id, src.SourceText)
	if err != nil {
		return nil, fmt.Errorf("failed to save strategy %q: %w", id, err)
	}
	return a.enqueue(ctx, src)
}

func (a *App) enqueue(ctx context.Context, src *model.StrategySource) (<-chan model.CompileOutcome, error) {
	logger := ctxlog.FromContext(a.ctx).With("strategy", src.ID, "version", src.UpdateVersion)
	a.status.compiling(src.ID, src.UpdateVersion)

	result, err := a.pool.Submit(ctx, worker.Job{
		SourceID: src.ID,
		Source:   src.SourceText,
		Version:  src.UpdateVersion,
	})
	if err != nil {
		a.status.finish(src.ID, src.UpdateVersion, model.CompileOutcome{})
		logger.Warn("Compile could not be queued.", "error", err)
		return nil, fmt.Errorf("failed to queue compile of %q: %w", src.ID, err)
	}
	logger.Debug("Compile queued.")
	return result, nil
}

// Remove unpublishes id. Compiles of the current or any older submission that
// are still running are discarded when they finish; only a later Submit or
// Reload publishes the strategy again. It reports whether an artifact was
// serving.
func (a *App) Remove(ctx context.Context, id string) (bool, error) {
	var version uint64
	src, err := a.store.Find(ctx, id)
	switch {
	case err == nil:
		version = src.UpdateVersion
	case errors.Is(err, store.ErrNotFound):
		version, _ = a.registry.Version(id)
	default:
		return false, fmt.Errorf("failed to remove strategy %q: %w", id, err)
	}

	removed := a.registry.RemoveThrough(id, version)
	a.status.remove(id, version)
	ctxlog.FromContext(a.ctx).Info("Strategy removed.", "strategy", id, "version", version, "was_serving", removed)
	return removed, nil
}

// ListLoaded returns the sorted ids of strategies with a serving artifact.
func (a *App) ListLoaded() []string {
	return a.registry.ListIDs()
}

// Lookup returns the artifact serving for id. A trading engine calls this
// once per evaluation cycle and skips the strategy when it reports false.
func (a *App) Lookup(id string) (*model.CompiledArtifact, bool) {
	return a.registry.Lookup(id)
}

// LastCompileError returns the persisted error of the latest failed compile
// of id, or nil if it compiled cleanly.
func (a *App) LastCompileError(ctx context.Context, id string) (*string, error) {
	src, err := a.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read compile error of %q: %w", id, err)
	}
	return src.LastCompileError, nil
}

// Status returns the outcome of the latest load attempt of id.
func (a *App) Status(id string) model.State {
	return a.status.get(id)
}
