// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import "time"

// StrategySource is the persisted record a strategy is compiled from.
//
// Only the orchestrator mutates LastCompileError, and it does so through the
// store rather than on this struct.
type StrategySource struct {
	ID               string
	SourceText       string
	LastCompileError *string
	// UpdateVersion is bumped by the store on every submission.
	UpdateVersion uint64
	UpdatedAt     time.Time
}

// HasSource reports whether the record carries any compilable text.
func (s *StrategySource) HasSource() bool {
	if s == nil {
		return false
	}
	for _, r := range s.SourceText {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return true
	}
	return false
}

// State is the outcome of the latest load attempt for one strategy.
type State int32

const (
	// Unloaded means no artifact is published for the strategy.
	Unloaded State = iota
	// Compiling means a compile job for the strategy is queued or running.
	Compiling
	// Loaded means the latest compile succeeded and its artifact is published.
	Loaded
	// FailedKeepingPrevious means the latest compile failed. A previously
	// published artifact, if there was one, keeps serving.
	FailedKeepingPrevious
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Compiling:
		return "Compiling"
	case Loaded:
		return "Loaded"
	case FailedKeepingPrevious:
		return "FailedKeepingPrevious"
	default:
		return "Unknown"
	}
}
