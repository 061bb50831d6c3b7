// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import (
	"fmt"
	"strings"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Kind tags where a diagnostic came from.
type Kind string

const (
	KindBackendDiagnostic Kind = "BackendDiagnostic"
	KindBackendTimeout    Kind = "BackendTimeout"
	KindAllBackendsFailed Kind = "AllBackendsFailed"
)

// Diagnostic is a single located compiler message. Line and Column are
// 1-based; zero means the position is unknown.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Backend  string
	Line     int
	Column   int
	Message  string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Backend != "" {
		fmt.Fprintf(&b, "[%s] ", d.Backend)
	}
	b.WriteString(d.Severity.String())
	if d.Line > 0 {
		fmt.Fprintf(&b, " at %d:%d", d.Line, d.Column)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Diagnostics is a list of Diagnostic values.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error renders all diagnostics one per line. It is the text persisted as a
// strategy's LastCompileError.
func (ds Diagnostics) Error() string {
	lines := make([]string, 0, len(ds))
	for _, d := range ds {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

// Errorf builds an error diagnostic without a position.
func Errorf(backend string, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Kind:     KindBackendDiagnostic,
		Backend:  backend,
		Message:  fmt.Sprintf(format, args...),
	}
}
