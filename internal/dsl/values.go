package dsl

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vk/hotswap/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Names of the root variables a strategy may reference.
const (
	VarSeries = "series"
	VarParams = "params"
	VarBar    = "bar"
)

// SeriesType is the cty type of a series value.
var SeriesType = cty.Object(map[string]cty.Type{
	"open":   cty.List(cty.Number),
	"high":   cty.List(cty.Number),
	"low":    cty.List(cty.Number),
	"close":  cty.List(cty.Number),
	"volume": cty.List(cty.Number),
	"length": cty.Number,
})

// BarType is the cty type of the most recent bar.
var BarType = cty.Object(map[string]cty.Type{
	"open":   cty.Number,
	"high":   cty.Number,
	"low":    cty.Number,
	"close":  cty.Number,
	"volume": cty.Number,
})

// SeriesValue converts a market series into its cty form.
func SeriesValue(s model.Series) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"open":   NumberList(s.Opens()),
		"high":   NumberList(s.Highs()),
		"low":    NumberList(s.Lows()),
		"close":  NumberList(s.Closes()),
		"volume": NumberList(s.Volumes()),
		"length": cty.NumberIntVal(int64(len(s))),
	})
}

// BarValue converts the most recent bar of s. An empty series yields zeros.
func BarValue(s model.Series) cty.Value {
	var b model.Bar
	if len(s) > 0 {
		b = s[len(s)-1]
	}
	return cty.ObjectVal(map[string]cty.Value{
		"open":   number(b.Open),
		"high":   number(b.High),
		"low":    number(b.Low),
		"close":  number(b.Close),
		"volume": number(b.Volume),
	})
}

// ParamsValue converts strategy parameters into a cty object.
func ParamsValue(p model.Params) cty.Value {
	if len(p) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(p))
	for k, v := range p {
		attrs[k] = number(v)
	}
	return cty.ObjectVal(attrs)
}

// ParamsFromValue decodes a constant object of numbers into Params.
func ParamsFromValue(v cty.Value) (model.Params, error) {
	if v.IsNull() {
		return model.Params{}, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("params must be a constant object")
	}
	asMap, err := convert.Convert(v, cty.Map(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("params must be an object of numbers: %w", err)
	}
	var out map[string]float64
	if err := gocty.FromCtyValue(asMap, &out); err != nil {
		return nil, fmt.Errorf("params must be an object of numbers: %w", err)
	}
	return model.Params(out), nil
}

// MergeParams returns defaults overlaid by overrides.
func MergeParams(defaults, overrides model.Params) model.Params {
	out := make(model.Params, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// NumberList converts floats into a cty list, empty lists included.
func NumberList(values []float64) cty.Value {
	if len(values) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	out := make([]cty.Value, len(values))
	for i, v := range values {
		out[i] = number(v)
	}
	return cty.ListVal(out)
}

// Floats extracts numbers from a list, tuple or set of numbers, or the close
// prices of a series object.
func Floats(v cty.Value) ([]float64, error) {
	if v.IsNull() {
		return nil, errors.New("a list of numbers or a series is required, got null")
	}
	ty := v.Type()
	if ty.IsObjectType() {
		if !ty.HasAttribute("close") {
			return nil, fmt.Errorf("object has no %q attribute; pass a series or a number list", "close")
		}
		return Floats(v.GetAttr("close"))
	}
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return nil, fmt.Errorf("a list of numbers or a series is required, got %s", ty.FriendlyName())
	}

	out := make([]float64, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if !elem.IsKnown() {
			return nil, errors.New("list elements must be known")
		}
		if elem.IsNull() || elem.Type() != cty.Number {
			return nil, fmt.Errorf("list elements must be numbers, got %s", elem.Type().FriendlyName())
		}
		f, _ := elem.AsBigFloat().Float64()
		out = append(out, f)
	}
	return out, nil
}

// number guards against NaN, which cty numbers cannot represent.
func number(f float64) cty.Value {
	if math.IsNaN(f) {
		return cty.Zero
	}
	return cty.NumberFloatVal(f)
}

// DecisionFromBool maps a strict entry/exit pair to a decision.
func DecisionFromBool(entry, exit bool) model.Decision {
	switch {
	case entry:
		return model.Buy
	case exit:
		return model.Sell
	default:
		return model.Hold
	}
}

// DecisionFromValue coerces a loosely typed result: a bool (true is BUY), a
// number (its sign) or one of the strings BUY, SELL and HOLD.
func DecisionFromValue(v cty.Value) (model.Decision, error) {
	if v.IsNull() {
		return model.Hold, errors.New("strategy returned null")
	}
	if !v.IsKnown() {
		return model.Hold, errors.New("strategy returned an unknown value")
	}
	switch v.Type() {
	case cty.Bool:
		if v.True() {
			return model.Buy, nil
		}
		return model.Hold, nil
	case cty.Number:
		switch v.AsBigFloat().Sign() {
		case 1:
			return model.Buy, nil
		case -1:
			return model.Sell, nil
		default:
			return model.Hold, nil
		}
	case cty.String:
		switch strings.ToUpper(strings.TrimSpace(v.AsString())) {
		case "BUY":
			return model.Buy, nil
		case "SELL":
			return model.Sell, nil
		case "HOLD":
			return model.Hold, nil
		}
		return model.Hold, fmt.Errorf("unrecognised decision %q", v.AsString())
	}
	return model.Hold, fmt.Errorf("strategy must return a bool, number or decision string, got %s", v.Type().FriendlyName())
}

// LooseResultType reports whether a result type can be coerced by
// DecisionFromValue.
func LooseResultType(ty cty.Type) bool {
	return ty == cty.Bool || ty == cty.Number || ty == cty.String || ty == cty.DynamicPseudoType
}
