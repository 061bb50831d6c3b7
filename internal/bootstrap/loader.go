// Package bootstrap compiles every persisted strategy at startup.
package bootstrap

import (
	"context"
	"sort"
	"sync"

	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/model"
	"golang.org/x/sync/errgroup"
)

// Compiler compiles and publishes one strategy.
type Compiler interface {
	Compile(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome

func (f CompilerFunc) Compile(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome {
	return f(ctx, sourceID, source, version)
}

// Summary reports how a batch load went.
type Summary struct {
	Succeeded []string
	Failed    map[string]model.Diagnostics
}

// Total is the number of sources that were compiled.
func (s Summary) Total() int {
	return len(s.Succeeded) + len(s.Failed)
}

// Loader loads a batch of sources, compiling up to a fixed number at once.
type Loader struct {
	compiler    Compiler
	concurrency int
}

// New creates a Loader. concurrency below one means one at a time.
func New(compiler Compiler, concurrency int) *Loader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loader{compiler: compiler, concurrency: concurrency}
}

// LoadAll compiles every source with non-blank text. A failure, or even a
// panic, while loading one source is recorded in the summary and never stops
// the others.
func (l *Loader) LoadAll(ctx context.Context, sources []*model.StrategySource) Summary {
	logger := ctxlog.FromContext(ctx)
	summary := Summary{Failed: make(map[string]model.Diagnostics)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for _, src := range sources {
		if src == nil {
			continue
		}
		if !src.HasSource() {
			logger.Debug("Skipping strategy without source.", "strategy", src.ID)
			continue
		}
		g.Go(func() error {
			out := l.loadOne(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			if out.Success {
				summary.Succeeded = append(summary.Succeeded, src.ID)
			} else {
				summary.Failed[src.ID] = out.Diagnostics
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(summary.Succeeded)
	logger.Info("Bootstrap finished.", "loaded", len(summary.Succeeded), "failed", len(summary.Failed))
	return summary
}

func (l *Loader) loadOne(ctx context.Context, src *model.StrategySource) (out model.CompileOutcome) {
	logger := ctxlog.FromContext(ctx).With("strategy", src.ID, "version", src.UpdateVersion)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Loading strategy panicked.", "panic", r)
			out = model.CompileOutcome{
				Diagnostics: model.Diagnostics{model.Errorf("", "load panicked: %v", r)},
			}
		}
	}()

	out = l.compiler.Compile(ctx, src.ID, src.SourceText, src.UpdateVersion)
	if !out.Success {
		logger.Warn("Strategy failed to load.", "diagnostics", len(out.Diagnostics))
	}
	return out
}
