package dsl

import (
	"fmt"

	"github.com/vk/hotswap/internal/indicator"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Functions returns a fresh function table for one compile.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"sma":       periodFunc("sma", indicator.SMA),
		"ema":       periodFunc("ema", indicator.EMA),
		"rsi":       periodFunc("rsi", indicator.RSI),
		"highest":   periodFunc("highest", indicator.Highest),
		"lowest":    periodFunc("lowest", indicator.Lowest),
		"crossUp":   crossFunc("crossUp", indicator.CrossUp),
		"crossDown": crossFunc("crossDown", indicator.CrossDown),
		"last":      lastFunc(),
		"prev":      prevFunc(),
		"abs":       stdlib.AbsoluteFunc,
		"min":       stdlib.MinFunc,
		"max":       stdlib.MaxFunc,
		"floor":     stdlib.FloorFunc,
		"ceil":      stdlib.CeilFunc,
	}
}

// IsFunction reports whether name is part of the strategy function table.
func IsFunction(name string) bool {
	switch name {
	case "sma", "ema", "rsi", "highest", "lowest", "crossUp", "crossDown",
		"last", "prev", "abs", "min", "max", "floor", "ceil":
		return true
	}
	return false
}

// IndicatorNames lists the functions that take a (values, period) pair.
func IndicatorNames() []string {
	return []string{"sma", "ema", "rsi", "highest", "lowest"}
}

func periodFunc(name string, calc func([]float64, int) []float64) function.Function {
	return function.New(&function.Spec{
		Description: fmt.Sprintf("%s(values, period) over a number list or a series (close prices).", name),
		Params: []function.Parameter{
			{Name: "values", Type: cty.DynamicPseudoType},
			{Name: "period", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.List(cty.Number)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			values, err := Floats(args[0])
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			var period int
			if err := gocty.FromCtyValue(args[1], &period); err != nil {
				return cty.NilVal, function.NewArgError(1, err)
			}
			if period <= 0 {
				return cty.NilVal, function.NewArgErrorf(1, "period must be positive, got %d", period)
			}
			return NumberList(calc(values, period)), nil
		},
	})
}

func crossFunc(name string, cross func(a, b []float64) bool) function.Function {
	return function.New(&function.Spec{
		Description: fmt.Sprintf("%s(a, b) reports a crossover on the most recent value.", name),
		Params: []function.Parameter{
			{Name: "a", Type: cty.DynamicPseudoType},
			{Name: "b", Type: cty.DynamicPseudoType},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			a, err := Floats(args[0])
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			b, err := Floats(args[1])
			if err != nil {
				return cty.NilVal, function.NewArgError(1, err)
			}
			return cty.BoolVal(cross(a, b)), nil
		},
	})
}

func lastFunc() function.Function {
	return function.New(&function.Spec{
		Description: "last(values) returns the most recent value.",
		Params: []function.Parameter{
			{Name: "values", Type: cty.DynamicPseudoType},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return at(args[0], 0)
		},
	})
}

func prevFunc() function.Function {
	return function.New(&function.Spec{
		Description: "prev(values, n) returns the value n bars before the most recent one.",
		Params: []function.Parameter{
			{Name: "values", Type: cty.DynamicPseudoType},
			{Name: "n", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			var n int
			if err := gocty.FromCtyValue(args[1], &n); err != nil {
				return cty.NilVal, function.NewArgError(1, err)
			}
			if n < 0 {
				return cty.NilVal, function.NewArgErrorf(1, "offset must not be negative, got %d", n)
			}
			return at(args[0], n)
		},
	})
}

func at(v cty.Value, back int) (cty.Value, error) {
	values, err := Floats(v)
	if err != nil {
		return cty.NilVal, function.NewArgError(0, err)
	}
	idx := len(values) - 1 - back
	if idx < 0 {
		return cty.NilVal, function.NewArgErrorf(0, "need at least %d values, have %d", back+1, len(values))
	}
	return cty.NumberFloatVal(values[idx]), nil
}
