package backend

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/dsl"
	"github.com/vk/hotswap/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

const strategyFileName = "strategy.hcl"

var strategyFileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "strategy", LabelNames: []string{"name"}},
	},
}

var strategyBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "params"},
		{Name: "entry", Required: true},
		{Name: "exit"},
		{Name: "description"},
	},
}

// strategyDef is a decoded strategy block.
type strategyDef struct {
	name        string
	description string
	params      model.Params // nil when the block declares no params
	entry       hcl.Expression
	exit        hcl.Expression // nil when absent
}

// FullBackend compiles an HCL strategy block. It checks symbols and result
// types against a dry-run evaluation before producing an artifact.
type FullBackend struct {
	scratchDir string
}

// NewFull creates a FullBackend whose per-compile workspaces live under
// scratchDir.
func NewFull(scratchDir string) *FullBackend {
	return &FullBackend{scratchDir: scratchDir}
}

func (b *FullBackend) Name() string { return NameFull }

// Compile writes source into a fresh workspace, parses it from there and
// releases the workspace before returning. If ctx ends first the workspace
// is removed immediately.
func (b *FullBackend) Compile(ctx context.Context, source string, sourceID string) (out model.CompileOutcome) {
	defer recoverInto(NameFull, &out)
	logger := ctxlog.FromContext(ctx).With("backend", NameFull, "strategy", sourceID)
	if o, done := cancelled(ctx, NameFull); done {
		return o
	}

	ws, err := NewWorkspace(b.scratchDir, sourceID)
	if err != nil {
		return failed(NameFull, model.Errorf(NameFull, "%v", err))
	}
	stop := context.AfterFunc(ctx, func() { _ = ws.Release() })
	defer func() {
		stop()
		if err := ws.Release(); err != nil {
			logger.Warn("Failed to release scratch workspace.", "dir", ws.Dir(), "error", err)
		}
	}()
	logger.Debug("Scratch workspace acquired.", "dir", ws.Dir(), "namespace", ws.Namespace())

	path, err := ws.WriteFile(strategyFileName, []byte(source))
	if o, done := cancelled(ctx, NameFull); done {
		return o
	}
	if err != nil {
		return failed(NameFull, model.Errorf(NameFull, "%v", err))
	}

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if o, done := cancelled(ctx, NameFull); done {
		return o
	}
	if diags.HasErrors() {
		return failed(NameFull, dsl.Diagnostics(NameFull, diags)...)
	}

	def, decodeDiags := decodeStrategy(file.Body)
	diags = append(diags, decodeDiags...)
	if diags.HasErrors() {
		return failed(NameFull, dsl.Diagnostics(NameFull, diags)...)
	}

	funcs := dsl.Functions()
	diags = append(diags, def.check(funcs)...)
	if diags.HasErrors() {
		return failed(NameFull, dsl.Diagnostics(NameFull, diags)...)
	}

	logger.Debug("Strategy block compiled.", "name", def.name)
	artifact := model.NewCompiledArtifact(sourceID, NameFull, 0, def.decideFunc(funcs))
	return succeeded(NameFull, artifact, warningsOnly(dsl.Diagnostics(NameFull, diags)))
}

func decodeStrategy(body hcl.Body) (*strategyDef, hcl.Diagnostics) {
	root, diags := body.Content(strategyFileSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	switch len(root.Blocks) {
	case 1:
	case 0:
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Contract mismatch",
			Detail:   "Exactly one strategy block is required, found none.",
			Subject:  body.MissingItemRange().Ptr(),
		})
	default:
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Contract mismatch",
			Detail:   fmt.Sprintf("Exactly one strategy block is required, found %d.", len(root.Blocks)),
			Subject:  &root.Blocks[1].DefRange,
		})
	}

	block := root.Blocks[0]
	content, contentDiags := block.Body.Content(strategyBodySchema)
	diags = append(diags, contentDiags...)
	if contentDiags.HasErrors() {
		return nil, diags
	}

	def := &strategyDef{name: block.Labels[0], entry: content.Attributes["entry"].Expr}
	if attr, ok := content.Attributes["exit"]; ok {
		def.exit = attr.Expr
	}
	if attr, ok := content.Attributes["description"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &def.description)...)
	}
	if attr, ok := content.Attributes["params"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			params, err := dsl.ParamsFromValue(val)
			if err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid params",
					Detail:   err.Error(),
					Subject:  attr.Expr.Range().Ptr(),
				})
			}
			def.params = params
		}
	}
	return def, diags
}

func (d *strategyDef) rules() map[string]hcl.Expression {
	rules := map[string]hcl.Expression{"entry": d.entry}
	if d.exit != nil {
		rules["exit"] = d.exit
	}
	return rules
}

// check resolves every symbol and evaluates each rule against unknown market data.
// A rule must be able to produce a bool.
func (d *strategyDef) check(funcs map[string]function.Function) hcl.Diagnostics {
	allowed := map[string]bool{dsl.VarSeries: true, dsl.VarParams: true, dsl.VarBar: true}

	var diags hcl.Diagnostics
	for _, name := range []string{"entry", "exit"} {
		if expr, ok := d.rules()[name]; ok {
			diags = append(diags, unresolvedSymbols(expr, allowed, funcs)...)
		}
	}
	if diags.HasErrors() {
		return diags
	}

	params := cty.DynamicVal
	if d.params != nil {
		params = dsl.ParamsValue(d.params)
	}
	dryRun := evalContext(funcs, map[string]cty.Value{
		dsl.VarSeries: cty.UnknownVal(dsl.SeriesType),
		dsl.VarParams: params,
		dsl.VarBar:    cty.UnknownVal(dsl.BarType),
	})

	for _, name := range []string{"entry", "exit"} {
		expr, ok := d.rules()[name]
		if !ok {
			continue
		}
		val, valDiags := expr.Value(dryRun)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		if _, err := convert.Convert(val, cty.Bool); err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Contract mismatch",
				Detail:   fmt.Sprintf("The %q rule must produce a bool, got %s.", name, val.Type().FriendlyName()),
				Subject:  expr.Range().Ptr(),
			})
		}
	}
	return diags
}

func (d *strategyDef) decideFunc(funcs map[string]function.Function) model.DecideFunc {
	return func(series model.Series, params model.Params) (model.Decision, error) {
		ectx := evalContext(funcs, map[string]cty.Value{
			dsl.VarSeries: dsl.SeriesValue(series),
			dsl.VarParams: dsl.ParamsValue(dsl.MergeParams(d.params, params)),
			dsl.VarBar:    dsl.BarValue(series),
		})

		entry, err := evalBool(d.entry, ectx)
		if err != nil {
			return model.Hold, fmt.Errorf("strategy %q entry: %w", d.name, err)
		}
		var exit bool
		if d.exit != nil {
			if exit, err = evalBool(d.exit, ectx); err != nil {
				return model.Hold, fmt.Errorf("strategy %q exit: %w", d.name, err)
			}
		}
		return dsl.DecisionFromBool(entry, exit), nil
	}
}
