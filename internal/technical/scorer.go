package technical

import (
	"context"
	"math"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Scorer computes the normalized composite technical score
// ⭐ SSOT: 기술적 점수화는 여기서만
//
// Pure function of its inputs: bars must already be truncated to dates
// strictly before the decision date (the orchestrator owns that cutoff).
type Scorer struct {
	cfg    strategyconfig.Technical
	logger *logger.Logger
}

// NewScorer creates a new technical scorer
func NewScorer(cfg strategyconfig.Technical, log *logger.Logger) *Scorer {
	return &Scorer{
		cfg:    cfg,
		logger: log,
	}
}

// Score computes the composite technical score for one instrument.
//
// Unbounded indicators normalize via rolling min-max over the trailing
// window; bounded ones via a static linear map. A category with no
// computable indicator falls back to 0.5 neutral and flags the result as
// degraded instead of aborting.
func (s *Scorer) Score(ctx context.Context, code string, bars []contracts.PriceBar, regime *contracts.RegimeState) (float64, contracts.TechnicalDetails, error) {
	details := contracts.TechnicalDetails{}

	if len(bars) == 0 {
		details.Trend, details.Momentum, details.Volume, details.Volatility = 0.5, 0.5, 0.5, 0.5
		details.Degraded = true
		details.Reason = contracts.ReasonNoPriceHistory
		return 0.5, details, nil
	}

	closes := contracts.Closes(bars)
	window := s.cfg.RollingWindow

	// Trend: SMA20/SMA60 ratio, close vs SMA200, MACD histogram
	sma20 := smaSeries(closes, 20)
	sma60 := smaSeries(closes, 60)
	sma200 := smaSeries(closes, 200)
	trend, trendN := meanAvailable(
		rollingMinMax(ratioSeries(sma20, sma60), window),
		rollingMinMax(ratioSeries(closes, sma200), window),
		rollingMinMax(macdHistogramSeries(closes), window),
	)

	// Momentum: RSI14 (bounded), 20-day ROC, stochastic %K14 (bounded)
	rsi := rsiSeries(closes, 14)
	stoch := stochasticKSeries(bars, 14)
	momentum, momentumN := meanAvailable(
		staticScale(lastValue(rsi), 0, 100),
		rollingMinMax(rocSeries(closes, 20), window),
		staticScale(lastValue(stoch), 0, 100),
	)

	// Volume: OBV 20-day change, volume vs 20-day average
	volume, volumeN := meanAvailable(
		rollingMinMax(obvChangeSeries(bars, 20), window),
		rollingMinMax(volumeRatioSeries(bars, 20), window),
	)

	// Volatility: ATR14 % and Bollinger bandwidth, inverted so that calmer
	// price action ranks higher
	volatility, volatilityN := meanAvailable(
		invert(rollingMinMax(atrPercentSeries(bars, 14), window)),
		invert(rollingMinMax(bollingerWidthSeries(closes, 20), window)),
	)

	details.Trend = trend
	details.Momentum = momentum
	details.Volume = volume
	details.Volatility = volatility
	details.Available = trendN + momentumN + volumeN + volatilityN
	if trendN == 0 || momentumN == 0 || volumeN == 0 || volatilityN == 0 {
		details.Degraded = true
		details.Reason = contracts.ReasonThinHistory
	}

	weights := s.selectWeights(regime)
	score := clamp01((weights.Trend*trend +
		weights.Momentum*momentum +
		weights.Volume*volume +
		weights.Volatility*volatility) / weights.Sum())

	s.logger.WithFields(map[string]interface{}{
		"code":       code,
		"trend":      trend,
		"momentum":   momentum,
		"volume":     volume,
		"volatility": volatility,
		"available":  details.Available,
		"score":      score,
	}).Debug("Calculated technical score")

	return score, details, nil
}

// selectWeights picks static or regime-conditioned category weights
func (s *Scorer) selectWeights(regime *contracts.RegimeState) strategyconfig.CategoryWeights {
	if !s.cfg.RegimeWeights.Enable || !regime.Known() {
		return s.cfg.Weights
	}
	switch regime.Label {
	case contracts.RegimeBull:
		return s.cfg.RegimeWeights.Bull
	case contracts.RegimeBear:
		return s.cfg.RegimeWeights.Bear
	case contracts.RegimeSideways:
		return s.cfg.RegimeWeights.Sideways
	default:
		return s.cfg.Weights
	}
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func invert(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return 1 - v
}
