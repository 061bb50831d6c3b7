package backend

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/hotswap/internal/dsl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// unresolvedSymbols reports every root variable in expr that is not in
// allowed and, when funcs is non-nil, every call to a function it lacks.
func unresolvedSymbols(expr hcl.Expression, allowed map[string]bool, funcs map[string]function.Function) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, ref := range dsl.RootVariables(expr) {
		if allowed[ref.Name] {
			continue
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unresolved symbol",
			Detail:   fmt.Sprintf("There is no variable named %q.", ref.Name),
			Subject:  ref.Range.Ptr(),
		})
	}
	if funcs == nil {
		return diags
	}
	for _, ref := range dsl.CalledFunctions(expr) {
		if _, ok := funcs[ref.Name]; ok {
			continue
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unresolved symbol",
			Detail:   fmt.Sprintf("There is no function named %q.", ref.Name),
			Subject:  ref.Range.Ptr(),
		})
	}
	return diags
}

func evalContext(funcs map[string]function.Function, vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{Variables: vars, Functions: funcs}
}

// evalBool evaluates a strict boolean expression. Null counts as false.
func evalBool(expr hcl.Expression, ectx *hcl.EvalContext) (bool, error) {
	val, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return false, diags
	}
	val, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("expected a bool: %w", err)
	}
	if val.IsNull() {
		return false, nil
	}
	if !val.IsKnown() {
		return false, errors.New("expression evaluated to an unknown value")
	}
	return val.True(), nil
}
