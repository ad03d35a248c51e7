package quant

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Scalar statistics over full slices, backed by gonum. These operate on
// whatever window the caller hands in; rolling-window callers slice first.

func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// StdDev is the population standard deviation, matching RollingMeanStd.
func StdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	m := stat.Mean(x, nil)
	var s float64
	for _, v := range x {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(x)))
}

// SampleStdDev for return-series metrics (Sharpe, Sortino).
func SampleStdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return math.Sqrt(stat.Variance(x, nil))
}

// ZScore of the last element against the window ending at it. Returns 0
// when the window is short or flat, so strategies degrade instead of erroring.
func ZScore(x []float64, window int) float64 {
	if window <= 1 || len(x) < window {
		return 0
	}
	w := x[len(x)-window:]
	m := Mean(w)
	sd := StdDev(w)
	if sd == 0 {
		return 0
	}
	return (w[len(w)-1] - m) / sd
}

// Correlation is the Pearson coefficient; 0 when undefined.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	c := stat.Correlation(a, b, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// HedgeRatio is the OLS slope of y on x.
func HedgeRatio(y, x []float64) float64 {
	if len(y) != len(x) || len(y) < 2 {
		return 0
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

// NormalQuantile returns the one-sided z-score for a confidence level,
// e.g. 0.95 -> 1.6449. Out-of-range confidence falls back to 95%.
func NormalQuantile(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	return distuv.UnitNormal.Quantile(confidence)
}
