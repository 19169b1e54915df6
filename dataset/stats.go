package dataset

import (
	"errors"
	"math"

	"github.com/samber/lo"
)

var (
	// ErrEmpty indicates a reduction over zero samples.
	ErrEmpty = errors.New("dataset: no samples")

	// ErrZeroTarget indicates a ratio over a sample whose target is zero.
	ErrZeroTarget = errors.New("dataset: zero target value")

	// ErrDegenerate indicates a mean ratio that is zero, infinite or undefined.
	ErrDegenerate = errors.New("dataset: degenerate mean ratio")
)

// Summary holds the deviation statistics of one evaluation pass.
type Summary struct {
	Deviation      float64 // population std-dev of Difference
	MeanDifference float64
	MeanRatio      float64
	RatioDeviation float64 // population std-dev of Ratio
	RatiosDefined  bool    // false when some target is zero
}

// DifferenceDeviation returns the population standard deviation of Difference.
func DifferenceDeviation(samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmpty
	}
	return stddev(lo.Map(samples, func(s Sample, _ int) float64 { return s.Difference() })), nil
}

// DifferenceMean returns the mean of Difference.
func DifferenceMean(samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmpty
	}
	return mean(lo.Map(samples, func(s Sample, _ int) float64 { return s.Difference() })), nil
}

// RatioDeviation returns the population standard deviation of Ratio.
func RatioDeviation(samples []Sample) (float64, error) {
	rs, err := ratios(samples)
	if err != nil {
		return 0, err
	}
	return stddev(rs), nil
}

// RatioMean returns the mean of Ratio.
func RatioMean(samples []Sample) (float64, error) {
	rs, err := ratios(samples)
	if err != nil {
		return 0, err
	}
	return mean(rs), nil
}

// ScaleRatio returns mean(Target) / mean(Computed), the factor that moves the
// mean computed value onto the mean target.
func ScaleRatio(samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmpty
	}
	targets := lo.SumBy(samples, func(s Sample) float64 { return s.Target })
	computed := lo.SumBy(samples, func(s Sample) float64 { return s.Computed })

	r := targets / computed
	if targets == 0 || computed == 0 || !finite(r) {
		return 0, ErrDegenerate
	}
	return r, nil
}

// Summarize computes every statistic at once. Ratio statistics are left zero
// with RatiosDefined unset when any target is zero.
func Summarize(samples []Sample) (Summary, error) {
	var (
		sum Summary
		err error
	)
	if sum.Deviation, err = DifferenceDeviation(samples); err != nil {
		return Summary{}, err
	}
	if sum.MeanDifference, err = DifferenceMean(samples); err != nil {
		return Summary{}, err
	}

	rs, err := ratios(samples)
	switch {
	case errors.Is(err, ErrZeroTarget):
		return sum, nil
	case err != nil:
		return Summary{}, err
	}
	sum.MeanRatio = mean(rs)
	sum.RatioDeviation = stddev(rs)
	sum.RatiosDefined = true
	return sum, nil
}

func ratios(samples []Sample) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	if lo.ContainsBy(samples, func(s Sample) bool { return s.Target == 0 }) {
		return nil, ErrZeroTarget
	}
	return lo.Map(samples, func(s Sample, _ int) float64 { return s.Ratio() }), nil
}

func mean(xs []float64) float64 {
	return lo.Sum(xs) / float64(len(xs))
}

// stddev divides by N, not N-1.
func stddev(xs []float64) float64 {
	m := mean(xs)
	return math.Sqrt(lo.SumBy(xs, func(x float64) float64 { return (x - m) * (x - m) }) / float64(len(xs)))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
