// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import "time"

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered, oldest-first list of bars.
type Series []Bar

// Closes returns the close prices of the series.
func (s Series) Closes() []float64 { return s.column(func(b Bar) float64 { return b.Close }) }

// Opens returns the open prices of the series.
func (s Series) Opens() []float64 { return s.column(func(b Bar) float64 { return b.Open }) }

// Highs returns the high prices of the series.
func (s Series) Highs() []float64 { return s.column(func(b Bar) float64 { return b.High }) }

// Lows returns the low prices of the series.
func (s Series) Lows() []float64 { return s.column(func(b Bar) float64 { return b.Low }) }

// Volumes returns the traded volumes of the series.
func (s Series) Volumes() []float64 { return s.column(func(b Bar) float64 { return b.Volume }) }

func (s Series) column(pick func(Bar) float64) []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = pick(b)
	}
	return out
}

// SeriesFromCloses builds a series whose bars all open, close and range at
// the given prices. Handy for tests and dry runs.
func SeriesFromCloses(closes ...float64) Series {
	start := time.Unix(0, 0).UTC()
	s := make(Series, len(closes))
	for i, c := range closes {
		s[i] = Bar{Time: start.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return s
}

// Params are the numeric tuning parameters passed to a strategy.
type Params map[string]float64

// Decision is what a strategy tells the trading engine to do this cycle.
type Decision int

const (
	Hold Decision = iota
	Buy
	Sell
)

func (d Decision) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}
