package technical

import (
	"math"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Indicator series are aligned to the input bars (chronological, oldest
// first). Positions where the indicator is undefined hold NaN; consumers
// skip NaN rather than zero-filling.

// smaSeries computes a simple moving average over period observations
func smaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// emaSeries computes an exponential moving average seeded with the SMA
func emaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		ema = values[i]*multiplier + ema*(1-multiplier)
		out[i] = ema
	}
	return out
}

// ratioSeries divides a by b element-wise, NaN where either side is NaN
func ratioSeries(a, b []float64) []float64 {
	out := nanSlice(len(a))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) || b[i] == 0 {
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}

// macdHistogramSeries computes the MACD histogram (12/26 line minus its
// 9-period signal)
func macdHistogramSeries(closes []float64) []float64 {
	out := nanSlice(len(closes))
	if len(closes) < 26 {
		return out
	}

	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)

	macd := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(ema12[i]) && !math.IsNaN(ema26[i]) {
			macd[i] = ema12[i] - ema26[i]
		}
	}

	// Signal line: EMA9 over the defined part of the MACD line
	start := 25 // first index where EMA26 exists
	if start >= len(closes) {
		return out
	}
	signal := emaSeries(macd[start:], 9)
	for i := range signal {
		if !math.IsNaN(signal[i]) {
			out[start+i] = macd[start+i] - signal[i]
		}
	}
	return out
}

// rsiSeries computes Wilder's RSI
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0 // flat series
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// rocSeries computes the rate of change over period observations
func rocSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			continue
		}
		out[i] = (closes[i] - closes[i-period]) / closes[i-period]
	}
	return out
}

// stochasticKSeries computes %K over the trailing period's high/low range
func stochasticKSeries(bars []contracts.PriceBar, period int) []float64 {
	out := nanSlice(len(bars))
	for i := period - 1; i < len(bars); i++ {
		hi, lo := bars[i].High, bars[i].Low
		for j := i - period + 1; j < i; j++ {
			hi = math.Max(hi, bars[j].High)
			lo = math.Min(lo, bars[j].Low)
		}
		if hi == lo {
			out[i] = 50.0
			continue
		}
		out[i] = 100 * (bars[i].Close - lo) / (hi - lo)
	}
	return out
}

// obvChangeSeries computes on-balance volume and its change over period bars
func obvChangeSeries(bars []contracts.PriceBar, period int) []float64 {
	obv := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		obv[i] = obv[i-1]
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv[i] += float64(bars[i].Volume)
		case bars[i].Close < bars[i-1].Close:
			obv[i] -= float64(bars[i].Volume)
		}
	}

	out := nanSlice(len(bars))
	for i := period; i < len(bars); i++ {
		out[i] = obv[i] - obv[i-period]
	}
	return out
}

// volumeRatioSeries computes volume relative to its trailing average
func volumeRatioSeries(bars []contracts.PriceBar, period int) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = float64(b.Volume)
	}
	avg := smaSeries(vols, period)

	out := nanSlice(len(bars))
	for i := range bars {
		if math.IsNaN(avg[i]) || avg[i] == 0 {
			continue
		}
		out[i] = vols[i] / avg[i]
	}
	return out
}

// atrPercentSeries computes Wilder's ATR as a fraction of the close
func atrPercentSeries(bars []contracts.PriceBar, period int) []float64 {
	out := nanSlice(len(bars))
	if len(bars) < period+1 {
		return out
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	if bars[period].Close != 0 {
		out[period] = atr / bars[period].Close
	}

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		if bars[i].Close != 0 {
			out[i] = atr / bars[i].Close
		}
	}
	return out
}

// bollingerWidthSeries computes band width (4σ/SMA) over period closes
func bollingerWidthSeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	sma := smaSeries(closes, period)
	for i := period - 1; i < len(closes); i++ {
		if math.IsNaN(sma[i]) || sma[i] == 0 {
			continue
		}
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - sma[i]
			variance += d * d
		}
		sigma := math.Sqrt(variance / float64(period))
		out[i] = 4 * sigma / sma[i]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
