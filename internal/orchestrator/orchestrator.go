// Package orchestrator turns a submitted strategy source into a published
// artifact.
//
// A compile normalizes the source once and offers the result to each backend
// in priority order, each under its own timeout. The first success is
// published to the registry under the submission's version; if every backend
// fails, the combined diagnostics are recorded against the source and the
// registry is left alone, so any earlier artifact keeps serving.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/hotswap/internal/backend"
	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/model"
	"github.com/vk/hotswap/internal/normalize"
	"github.com/vk/hotswap/internal/registry"
	"github.com/vk/hotswap/internal/store"
)

const (
	// DefaultTimeout bounds a single backend attempt unless WithTimeout says
	// otherwise.
	DefaultTimeout = 10 * time.Second
	// releaseGrace is how long a timed-out backend gets to release its
	// resources before the next backend starts.
	releaseGrace = 250 * time.Millisecond
)

// CompileErrorStore is the part of the source store the orchestrator writes
// to. Both calls must refuse, with store.ErrStaleVersion, a version older
// than the stored source.
type CompileErrorStore interface {
	SaveCompileError(ctx context.Context, id string, version uint64, text string) error
	ClearCompileError(ctx context.Context, id string, version uint64) error
}

// Orchestrator compiles and publishes strategies. It is safe for concurrent
// use.
type Orchestrator struct {
	normalizer *normalize.Normalizer
	backends   []backend.CompilerBackend
	registry   *registry.Registry
	errors     CompileErrorStore
	timeout    time.Duration
	scratchDir string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBackends replaces the default Full, Fast backend order.
func WithBackends(backends ...backend.CompilerBackend) Option {
	return func(o *Orchestrator) { o.backends = backends }
}

// WithTimeout bounds every single backend attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithNormalizer replaces the default rule pipeline.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithScratchDir places the full backend's workspaces under dir. It has no
// effect when WithBackends is also given.
func WithScratchDir(dir string) Option {
	return func(o *Orchestrator) { o.scratchDir = dir }
}

// New creates an Orchestrator publishing into reg and recording failures in
// errs.
func New(reg *registry.Registry, errs CompileErrorStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		normalizer: normalize.New(),
		registry:   reg,
		errors:     errs,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.backends) == 0 {
		o.backends = []backend.CompilerBackend{backend.NewFull(o.scratchDir), backend.NewFast()}
	}
	return o
}

// Backends returns the backend names in priority order.
func (o *Orchestrator) Backends() []string {
	names := make([]string, len(o.backends))
	for i, b := range o.backends {
		names[i] = b.Name()
	}
	return names
}

// CompileAndRegister compiles rawSource for sourceID and publishes the
// result at version. Outcome.Published reports whether the registry entry
// was actually replaced; a successful compile of an outdated version is
// discarded.
func (o *Orchestrator) CompileAndRegister(ctx context.Context, sourceID, rawSource string, version uint64) model.CompileOutcome {
	ctx = ctxlog.With(ctx, "strategy", sourceID, "version", version)
	logger := ctxlog.FromContext(ctx)

	normalized := o.normalizer.Normalize(ctx, rawSource)
	if normalized != rawSource {
		logger.Debug("Source normalized before compile.")
	}

	var attempted []string
	var diags model.Diagnostics
	for _, b := range o.backends {
		attempted = append(attempted, b.Name())
		out := o.attempt(ctx, b, normalized, sourceID)
		if out.Success && out.Artifact != nil {
			return o.publish(ctx, sourceID, version, out.Artifact, out.Diagnostics, attempted)
		}
		diags = append(diags, out.Diagnostics...)
		logger.Debug("Backend rejected strategy.", "backend", b.Name(), "diagnostics", len(out.Diagnostics))
	}

	return o.reject(ctx, sourceID, version, diags, attempted)
}

func (o *Orchestrator) publish(ctx context.Context, sourceID string, version uint64, artifact *model.CompiledArtifact, diags model.Diagnostics, attempted []string) model.CompileOutcome {
	logger := ctxlog.FromContext(ctx)
	artifact = artifact.WithVersion(version)
	out := model.CompileOutcome{
		Success:           true,
		Artifact:          artifact,
		Diagnostics:       diags,
		AttemptedBackends: attempted,
	}

	if !o.registry.Publish(sourceID, artifact, version) {
		logger.Debug("Stale publish discarded.", "kind", "StalePublishDiscarded", "backend", artifact.BackendUsed())
		return out
	}
	out.Published = true
	logger.Info("Strategy published.", "backend", artifact.BackendUsed(), "compiled_at", artifact.CompiledAt())

	switch err := o.errors.ClearCompileError(ctx, sourceID, version); {
	case errors.Is(err, store.ErrStaleVersion):
		logger.Debug("Newer submission owns the compile error; not cleared.")
	case err != nil:
		logger.Warn("Failed to clear last compile error.", "error", err)
	}
	return out
}

func (o *Orchestrator) reject(ctx context.Context, sourceID string, version uint64, diags model.Diagnostics, attempted []string) model.CompileOutcome {
	logger := ctxlog.FromContext(ctx)
	summary := model.Diagnostic{
		Severity: model.SeverityError,
		Kind:     model.KindAllBackendsFailed,
		Message:  fmt.Sprintf("all backends failed (%s)", strings.Join(attempted, ", ")),
	}
	out := model.CompileOutcome{
		Success:           false,
		Diagnostics:       append(model.Diagnostics{summary}, diags...),
		AttemptedBackends: attempted,
	}

	if ctx.Err() != nil {
		logger.Warn("Compile abandoned; error not recorded.", "error", ctx.Err())
		return out
	}
	if current, ok := o.registry.Version(sourceID); ok && current > version {
		logger.Debug("Failure of an outdated version not recorded.", "published_version", current)
		return out
	}

	switch err := o.errors.SaveCompileError(ctx, sourceID, version, out.Diagnostics.Error()); {
	case errors.Is(err, store.ErrStaleVersion):
		logger.Debug("Failure of an outdated version not recorded.", "kind", "StaleCompileError")
		return out
	case err != nil:
		logger.Error("Failed to record compile error.", "error", err)
	}
	_, serving := o.registry.Lookup(sourceID)
	logger.Warn("Strategy failed to compile.", "kind", model.KindAllBackendsFailed, "previous_serving", serving, "diagnostics", len(diags))
	return out
}

// attempt runs one backend under the per-backend timeout. A backend that
// overruns is reported as a BackendTimeout; its context is cancelled, which
// releases its workspace, and it gets a short grace period to return.
func (o *Orchestrator) attempt(ctx context.Context, b backend.CompilerBackend, source, sourceID string) model.CompileOutcome {
	logger := ctxlog.FromContext(ctx).With("backend", b.Name())
	attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan model.CompileOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- model.CompileOutcome{
					Diagnostics:       model.Diagnostics{model.Errorf(b.Name(), "backend panicked: %v", r)},
					AttemptedBackends: []string{b.Name()},
				}
			}
		}()
		done <- b.Compile(attemptCtx, source, sourceID)
	}()

	start := time.Now()
	select {
	case out := <-done:
		logger.Debug("Backend attempt finished.", "success", out.Success, "duration", time.Since(start))
		return out
	case <-attemptCtx.Done():
	}

	// The backend may have finished just as the deadline fired. A success
	// still wins; a failure there is reported as the timeout it answered.
	out, finished := finishedOutcome(done)
	if finished && out.Success {
		logger.Debug("Backend attempt finished at the deadline.", "duration", time.Since(start))
		return out
	}

	cancel()
	if !finished {
		select {
		case <-done:
		case <-time.After(releaseGrace):
			logger.Warn("Backend still running after timeout.")
		}
	}

	msg := fmt.Sprintf("compile did not finish within %s", o.timeout)
	if ctx.Err() != nil {
		msg = fmt.Sprintf("compile cancelled: %v", ctx.Err())
	}
	logger.Warn("Backend attempt timed out.", "kind", model.KindBackendTimeout, "timeout", o.timeout)
	return model.CompileOutcome{
		Diagnostics: model.Diagnostics{{
			Severity: model.SeverityError,
			Kind:     model.KindBackendTimeout,
			Backend:  b.Name(),
			Message:  msg,
		}},
		AttemptedBackends: []string{b.Name()},
	}
}

// finishedOutcome returns the outcome already sent on done, without waiting.
func finishedOutcome(done <-chan model.CompileOutcome) (model.CompileOutcome, bool) {
	select {
	case out := <-done:
		return out, true
	default:
		return model.CompileOutcome{}, false
	}
}
