package backend

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/dsl"
	"github.com/vk/hotswap/internal/model"
	"github.com/zclconf/go-cty/cty"
)

var lambdaRe = regexp.MustCompile(`^\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*,\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*->`)

// FastBackend compiles the lambda form "(series, params) -> expression". It
// reports only the first error and coerces bool, number and decision string
// results.
type FastBackend struct{}

func NewFast() *FastBackend { return &FastBackend{} }

func (b *FastBackend) Name() string { return NameFast }

func (b *FastBackend) Compile(ctx context.Context, source string, sourceID string) (out model.CompileOutcome) {
	defer recoverInto(NameFast, &out)
	if o, done := cancelled(ctx, NameFast); done {
		return o
	}

	m := lambdaRe.FindStringSubmatchIndex(source)
	if m == nil {
		return failed(NameFast, model.Diagnostic{
			Severity: model.SeverityError,
			Kind:     model.KindBackendDiagnostic,
			Backend:  NameFast,
			Line:     1,
			Column:   1,
			Message:  "Syntax error: expected a lambda of the form (series, params) -> expression",
		})
	}
	seriesName, paramsName := source[m[2]:m[3]], source[m[4]:m[5]]
	if seriesName == paramsName {
		return failed(NameFast, model.Errorf(NameFast, "Duplicate parameter %q in lambda header", seriesName))
	}

	expr, diags := hclsyntax.ParseExpression([]byte(source[m[1]:]), sourceID, positionAt(source, m[1]))
	if diags.HasErrors() {
		return failed(NameFast, firstError(diags))
	}

	allowed := map[string]bool{seriesName: true, paramsName: true, dsl.VarBar: true}
	if diags := unresolvedSymbols(expr, allowed, nil); diags.HasErrors() {
		return failed(NameFast, firstError(diags))
	}

	funcs := dsl.Functions()
	bind := func(series, params, bar cty.Value) map[string]cty.Value {
		return map[string]cty.Value{dsl.VarBar: bar, seriesName: series, paramsName: params}
	}

	val, diags := expr.Value(evalContext(funcs, bind(cty.UnknownVal(dsl.SeriesType), cty.DynamicVal, cty.UnknownVal(dsl.BarType))))
	if diags.HasErrors() {
		return failed(NameFast, firstError(diags))
	}
	if !dsl.LooseResultType(val.Type()) {
		rng := expr.Range()
		return failed(NameFast, dsl.At(NameFast, rng,
			contractMismatch("a lambda must return a bool, number or decision string", val.Type().FriendlyName())))
	}

	ctxlog.FromContext(ctx).Debug("Lambda compiled.", "backend", NameFast, "strategy", sourceID)
	decide := func(series model.Series, params model.Params) (model.Decision, error) {
		ectx := evalContext(funcs, bind(dsl.SeriesValue(series), dsl.ParamsValue(params), dsl.BarValue(series)))
		val, diags := expr.Value(ectx)
		if diags.HasErrors() {
			return model.Hold, diags
		}
		return dsl.DecisionFromValue(val)
	}
	return succeeded(NameFast, model.NewCompiledArtifact(sourceID, NameFast, 0, decide), nil)
}

// positionAt returns the HCL position of byte offset in src.
func positionAt(src string, offset int) hcl.Pos {
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	lineStart := strings.LastIndex(before, "\n") + 1
	return hcl.Pos{
		Line:   line,
		Column: utf8.RuneCountInString(before[lineStart:]) + 1,
		Byte:   offset,
	}
}

func firstError(diags hcl.Diagnostics) model.Diagnostic {
	for _, d := range dsl.Diagnostics(NameFast, diags) {
		if d.Severity == model.SeverityError {
			return d
		}
	}
	return model.Errorf(NameFast, "%s", fmt.Sprint(diags))
}
