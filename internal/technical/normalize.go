package technical

import "math"

// rollingMinMax normalizes the most recent value of a series against the
// min/max of its trailing window. Only observations at or before the last
// bar participate, which is what keeps the scorer free of look-ahead.
//
// Returns NaN when the latest value is undefined, 0.5 when the window has
// zero variance (a flat series carries no ranking information).
func rollingMinMax(series []float64, window int) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	last := series[len(series)-1]
	if math.IsNaN(last) {
		return math.NaN()
	}

	start := len(series) - window
	if start < 0 {
		start = 0
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range series[start:] {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if hi == lo || math.IsInf(lo, 1) {
		return 0.5
	}
	return clamp01((last - lo) / (hi - lo))
}

// staticScale maps a bounded indicator into [0,1] via a fixed linear
// transform (e.g. RSI and stochastic %K on their native 0..100 scale)
func staticScale(value, lo, hi float64) float64 {
	if math.IsNaN(value) || hi == lo {
		return math.NaN()
	}
	return clamp01((value - lo) / (hi - lo))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// meanAvailable averages the non-NaN values; ok is false when none remain
func meanAvailable(values ...float64) (mean float64, available int) {
	var sum float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		available++
	}
	if available == 0 {
		return 0.5, 0 // neutral when the whole category is missing
	}
	return sum / float64(available), available
}
