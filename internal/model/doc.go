// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the plain data types shared by every stage of the
// strategy pipeline: the persisted source record, compiler diagnostics, the
// outcome of a compile run, and the market-data and decision types a compiled
// strategy operates on.
//
// # Core Concepts
//
//   - StrategySource: the persisted text of a strategy plus its monotonic
//     UpdateVersion and the last compile error, if any.
//   - Diagnostic: one located compiler message.
//   - CompileOutcome: what a backend (or the orchestrator, in aggregate)
//     produced for one source text.
//   - Series / Params / Decision: the inputs and output of a compiled
//     strategy's decision function.
//
// Nothing in this package performs I/O or holds locks.
package model
