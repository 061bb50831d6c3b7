// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import "time"

// DecideFunc is the callable produced by a successful compile.
type DecideFunc func(series Series, params Params) (Decision, error)

// CompiledArtifact is the immutable, callable form of one strategy version.
// Fields are unexported so a published artifact cannot be altered.
type CompiledArtifact struct {
	sourceID   string
	backend    string
	version    uint64
	compiledAt time.Time
	decide     DecideFunc
}

// NewCompiledArtifact builds a fully constructed artifact. Backends call it
// only after every compile check has passed.
func NewCompiledArtifact(sourceID, backend string, version uint64, decide DecideFunc) *CompiledArtifact {
	return &CompiledArtifact{
		sourceID:   sourceID,
		backend:    backend,
		version:    version,
		compiledAt: time.Now(),
		decide:     decide,
	}
}

// WithVersion returns a copy stamped with the given submission version.
// Backends compile without knowing the version; the orchestrator stamps it.
func (a *CompiledArtifact) WithVersion(version uint64) *CompiledArtifact {
	cp := *a
	cp.version = version
	return &cp
}

func (a *CompiledArtifact) SourceID() string          { return a.sourceID }
func (a *CompiledArtifact) BackendUsed() string       { return a.backend }
func (a *CompiledArtifact) CompiledAtVersion() uint64 { return a.version }
func (a *CompiledArtifact) CompiledAt() time.Time     { return a.compiledAt }

// Decide evaluates the strategy against a market series. An evaluation error
// yields Hold alongside the error, so callers that ignore the error still
// get a safe decision.
func (a *CompiledArtifact) Decide(series Series, params Params) (Decision, error) {
	d, err := a.decide(series, params)
	if err != nil {
		return Hold, err
	}
	return d, nil
}

// CompileOutcome is the result of compiling one source text, either from a
// single backend or aggregated across all attempted backends.
type CompileOutcome struct {
	Success           bool
	Artifact          *CompiledArtifact
	Diagnostics       Diagnostics
	AttemptedBackends []string
	// Published is set by the orchestrator when the artifact actually
	// replaced the registry entry. A successful but stale compile leaves it
	// false.
	Published bool
}

// BackendUsed returns the name of the backend that produced the artifact, or
// an empty string on failure.
func (o CompileOutcome) BackendUsed() string {
	if o.Artifact == nil {
		return ""
	}
	return o.Artifact.BackendUsed()
}
