// Package indicator implements the small set of technical indicators exposed
// to strategy source code.
//
// Every function returns only fully warmed-up values: an N-period average of
// M inputs yields M-N+1 outputs, and fewer than N inputs yield an empty
// slice. Results are aligned to the end of the input, so the last element
// always belongs to the most recent bar.
package indicator

import "math"

// SMA returns the simple moving average over period.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA returns the exponential moving average over period, seeded with the
// SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	prev := seed / float64(period)
	out = append(out, prev)
	for _, v := range values[period:] {
		prev = v*k + prev*(1-k)
		out = append(out, prev)
	}
	return out
}

// RSI returns Wilder's relative strength index over period. It needs
// period+1 inputs for its first value.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return []float64{}
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Highest returns the rolling maximum over period.
func Highest(values []float64, period int) []float64 {
	return rolling(values, period, math.Max)
}

// Lowest returns the rolling minimum over period.
func Lowest(values []float64, period int) []float64 {
	return rolling(values, period, math.Min)
}

func rolling(values []float64, period int, pick func(a, b float64) float64) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}
	out := make([]float64, 0, len(values)-period+1)
	for i := period - 1; i < len(values); i++ {
		acc := values[i-period+1]
		for _, v := range values[i-period+2 : i+1] {
			acc = pick(acc, v)
		}
		out = append(out, acc)
	}
	return out
}

// CrossUp reports whether a crossed above b on the most recent bar: a was at
// or below b one bar ago and is strictly above it now. Both series are
// aligned on their last element.
func CrossUp(a, b []float64) bool {
	pa, ca, pb, cb, ok := lastTwo(a, b)
	return ok && pa <= pb && ca > cb
}

// CrossDown reports whether a crossed below b on the most recent bar.
func CrossDown(a, b []float64) bool {
	pa, ca, pb, cb, ok := lastTwo(a, b)
	return ok && pa >= pb && ca < cb
}

func lastTwo(a, b []float64) (pa, ca, pb, cb float64, ok bool) {
	if len(a) < 2 || len(b) < 2 {
		return 0, 0, 0, 0, false
	}
	return a[len(a)-2], a[len(a)-1], b[len(b)-2], b[len(b)-1], true
}
