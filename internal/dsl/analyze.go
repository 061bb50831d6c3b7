package dsl

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/hotswap/internal/model"
)

// Reference is a root variable or function name found in an expression,
// with the range where it first appears.
type Reference struct {
	Name  string
	Range hcl.Range
}

// RootVariables returns the distinct root names of all variable traversals
// in expr, sorted by name.
func RootVariables(expr hcl.Expression) []Reference {
	if expr == nil {
		return nil
	}
	seen := make(map[string]hcl.Range)
	for _, tr := range expr.Variables() {
		name := tr.RootName()
		if _, ok := seen[name]; !ok {
			seen[name] = tr.SourceRange()
		}
	}
	return sorted(seen)
}

// CalledFunctions returns every distinct function called anywhere in expr,
// sorted by name.
func CalledFunctions(expr hcl.Expression) []Reference {
	seen := make(map[string]hcl.Range)
	if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
		walkForFunctions(syntaxExpr, seen)
	}
	return sorted(seen)
}

func sorted(m map[string]hcl.Range) []Reference {
	out := make([]Reference, 0, len(m))
	for name, rng := range m {
		out = append(out, Reference{Name: name, Range: rng})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func walkForFunctions(expr hclsyntax.Expression, functions map[string]hcl.Range) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		if _, ok := functions[e.Name]; !ok {
			functions[e.Name] = e.NameRange
		}
		for _, arg := range e.Args {
			walkForFunctions(arg, functions)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, functions)
		walkForFunctions(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, functions)
		walkForFunctions(e.TrueResult, functions)
		walkForFunctions(e.FalseResult, functions)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, functions)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, functions)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, functions)
			walkForFunctions(item.ValueExpr, functions)
		}
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, functions)
		walkForFunctions(e.KeyExpr, functions)
		walkForFunctions(e.ValExpr, functions)
		walkForFunctions(e.CondExpr, functions)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, functions)
		walkForFunctions(e.Key, functions)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, functions)
		walkForFunctions(e.Each, functions)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, functions)
	case *hclsyntax.RelativeTraversalExpr:
		walkForFunctions(e.Source, functions)
	}
}

// Diagnostics maps HCL diagnostics onto model diagnostics for backend.
func Diagnostics(backend string, diags hcl.Diagnostics) model.Diagnostics {
	out := make(model.Diagnostics, 0, len(diags))
	for _, d := range diags {
		md := model.Diagnostic{
			Severity: model.SeverityError,
			Kind:     model.KindBackendDiagnostic,
			Backend:  backend,
			Message:  d.Summary,
		}
		if d.Severity == hcl.DiagWarning {
			md.Severity = model.SeverityWarning
		}
		if d.Detail != "" {
			md.Message += ": " + d.Detail
		}
		if d.Subject != nil {
			md.Line = d.Subject.Start.Line
			md.Column = d.Subject.Start.Column
		}
		out = append(out, md)
	}
	return out
}

// At builds an error diagnostic located at rng.
func At(backend string, rng hcl.Range, message string) model.Diagnostic {
	return model.Diagnostic{
		Severity: model.SeverityError,
		Kind:     model.KindBackendDiagnostic,
		Backend:  backend,
		Line:     rng.Start.Line,
		Column:   rng.Start.Column,
		Message:  message,
	}
}
