package evaluation

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// mean, median, and coefficientOfVariation are the small statistics
// helpers the Temporal evaluator uses, built on
// gonum/stat rather than hand-rolled arithmetic.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// coefficientOfVariation returns stddev/mean, clamped to [0,1]. A zero or
// single-element input, or a zero mean, returns 0.
func coefficientOfVariation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := stat.Mean(xs, nil)
	if m == 0 {
		return 0
	}
	sd := stat.StdDev(xs, nil)
	cv := sd / m
	if cv > 1 {
		cv = 1
	}
	if cv < 0 {
		cv = 0
	}
	return cv
}
