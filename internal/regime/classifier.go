package regime

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

// minFallbackBars is the smallest history the moving-average rule accepts.
// Below this even the fallback refuses to guess and reports UNKNOWN.
const minFallbackBars = 20

// Classifier turns benchmark history into a RegimeState for one date.
// ⭐ SSOT: 레짐 분류는 여기서만
//
// Primary path is the injected Fitter; any fit problem drops to the
// moving-average rule with Source=fallback so consumers can tell the
// difference. States are never cached across dates.
type Classifier struct {
	cfg    strategyconfig.Regime
	fitter Fitter
	logger *logger.Logger
}

// NewClassifier creates a classifier with the given fitter
func NewClassifier(cfg strategyconfig.Regime, fitter Fitter, log *logger.Logger) *Classifier {
	return &Classifier{cfg: cfg, fitter: fitter, logger: log}
}

// Classify computes the market regime from benchmark bars strictly before
// decisionDate. Zero usable bars is the one fatal condition: without any
// benchmark history the decision date cannot be computed at all.
func (c *Classifier) Classify(ctx context.Context, bars []contracts.PriceBar, decisionDate time.Time) (*contracts.RegimeState, error) {
	usable := contracts.TruncateBars(bars, decisionDate)
	if len(usable) == 0 {
		return nil, fmt.Errorf("no benchmark history before %s", decisionDate.Format("2006-01-02"))
	}

	closes := contracts.Closes(usable)
	returns := contracts.DailyReturns(closes)

	if len(returns) >= c.cfg.MinObservations {
		if state := c.classify(returns); state != nil {
			c.logState(state, len(returns))
			return state, nil
		}
	}

	state := c.fallback(closes, returns)
	c.logState(state, len(returns))
	return state, nil
}

// classify runs the fitter and maps states to labels by mean return:
// highest → BULL, lowest → BEAR, the rest → SIDEWAYS.
func (c *Classifier) classify(returns []float64) *contracts.RegimeState {
	result, err := c.fitter.Fit(returns, c.cfg.States)
	if err != nil {
		c.logger.WithError(err).Warn("Regime fit failed, using fallback rule")
		return nil
	}

	bullIdx, bearIdx := 0, 0
	for i, m := range result.Means {
		if m > result.Means[bullIdx] {
			bullIdx = i
		}
		if m < result.Means[bearIdx] {
			bearIdx = i
		}
	}

	selected := 0
	for i, p := range result.FinalProbs {
		if p > result.FinalProbs[selected] {
			selected = i
		}
	}

	label := contracts.RegimeSideways
	switch selected {
	case bullIdx:
		label = contracts.RegimeBull
	case bearIdx:
		label = contracts.RegimeBear
	}

	return &contracts.RegimeState{
		Label:      label,
		MeanReturn: result.Means[selected],
		Volatility: math.Sqrt(result.Variances[selected]),
		Confidence: result.FinalProbs[selected],
		Transition: result.Transition,
		Source:     contracts.RegimeSourceClassifier,
	}
}

// fallback is the binary moving-average rule. The window shrinks to the
// available history but never below minFallbackBars.
func (c *Classifier) fallback(closes, returns []float64) *contracts.RegimeState {
	window := c.cfg.FallbackMAWindow
	if len(closes) < window {
		window = len(closes)
	}
	if window < minFallbackBars {
		return &contracts.RegimeState{
			Label:  contracts.RegimeUnknown,
			Source: contracts.RegimeSourceFallback,
		}
	}

	sma := 0.0
	for _, v := range closes[len(closes)-window:] {
		sma += v
	}
	sma /= float64(window)

	label := contracts.RegimeBear
	if closes[len(closes)-1] > sma {
		label = contracts.RegimeBull
	}

	mean, std := meanStd(returns)
	return &contracts.RegimeState{
		Label:      label,
		MeanReturn: mean,
		Volatility: std,
		Confidence: 0.5,
		Source:     contracts.RegimeSourceFallback,
	}
}

func (c *Classifier) logState(state *contracts.RegimeState, observations int) {
	c.logger.WithFields(map[string]interface{}{
		"label":        string(state.Label),
		"source":       string(state.Source),
		"confidence":   state.Confidence,
		"observations": observations,
	}).Info("Regime classified")
}

// TrendSignal is the independent trend confirmation the policy gate pairs
// with the regime label: bearish when the last close sits at or below its
// moving average. ok is false when history is too thin to judge.
func TrendSignal(bars []contracts.PriceBar, decisionDate time.Time, window int) (bearish bool, ok bool) {
	usable := contracts.TruncateBars(bars, decisionDate)
	closes := contracts.Closes(usable)

	if len(closes) < window {
		window = len(closes)
	}
	if window < minFallbackBars {
		return false, false
	}

	sma := 0.0
	for _, v := range closes[len(closes)-window:] {
		sma += v
	}
	sma /= float64(window)

	return closes[len(closes)-1] <= sma, true
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
