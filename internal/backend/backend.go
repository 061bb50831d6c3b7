package backend

import (
	"context"
	"fmt"

	"github.com/vk/hotswap/internal/model"
)

// Backend names as they appear in diagnostics and outcomes.
const (
	NameFull = "Full"
	NameFast = "Fast"
)

// CompilerBackend compiles one normalized source text. Implementations never
// panic or return errors across this boundary: every failure is a diagnostic
// in the returned outcome.
type CompilerBackend interface {
	Name() string
	Compile(ctx context.Context, source string, sourceID string) model.CompileOutcome
}

func succeeded(name string, artifact *model.CompiledArtifact, warnings model.Diagnostics) model.CompileOutcome {
	return model.CompileOutcome{
		Success:           true,
		Artifact:          artifact,
		Diagnostics:       warnings,
		AttemptedBackends: []string{name},
	}
}

func failed(name string, diags ...model.Diagnostic) model.CompileOutcome {
	return model.CompileOutcome{
		Success:           false,
		Diagnostics:       diags,
		AttemptedBackends: []string{name},
	}
}

// recoverInto converts a panic inside Compile into an error diagnostic.
func recoverInto(name string, out *model.CompileOutcome) {
	if r := recover(); r != nil {
		*out = failed(name, model.Errorf(name, "internal compiler error: %v", r))
	}
}

// cancelled reports a compile abandoned because ctx ended.
func cancelled(ctx context.Context, name string) (model.CompileOutcome, bool) {
	if err := ctx.Err(); err != nil {
		d := model.Errorf(name, "compile abandoned: %v", err)
		d.Kind = model.KindBackendTimeout
		return failed(name, d), true
	}
	return model.CompileOutcome{}, false
}

func warningsOnly(diags model.Diagnostics) model.Diagnostics {
	var out model.Diagnostics
	for _, d := range diags {
		if d.Severity == model.SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

func contractMismatch(what, got string) string {
	return fmt.Sprintf("Contract mismatch: %s, got %s", what, got)
}
