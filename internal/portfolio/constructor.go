package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Constructor implements S6: gated scores → target weights
// ⭐ SSOT: 포트폴리오 구성 로직은 여기서만
type Constructor struct {
	cfg    strategyconfig.Portfolio
	logger *logger.Logger
}

// NewConstructor creates a new portfolio constructor
func NewConstructor(cfg strategyconfig.Portfolio, log *logger.Logger) *Constructor {
	return &Constructor{cfg: cfg, logger: log}
}

// Selection records one chosen instrument and its sizing inputs,
// kept for run diagnostics.
type Selection struct {
	Code      string  `json:"code"`
	Score     float64 `json:"score"`
	RiskProxy float64 `json:"risk_proxy"`
	Weight    float64 `json:"weight"`
	Degraded  bool    `json:"degraded"` // default proxy substituted
}

// Construct ranks gated scores, selects the top N and sizes them inversely
// to trailing risk. Ranking ties break by ascending code so the outcome
// never depends on map iteration order. Under CASH_OUT the weights are
// empty and sum to zero.
func (c *Constructor) Construct(ctx context.Context, decisionDate time.Time, gated map[string]float64, cashOut bool, bars map[string][]contracts.PriceBar) (*contracts.TargetWeights, []Selection) {
	target := &contracts.TargetWeights{
		DecisionDate: decisionDate,
		Weights:      make(map[string]float64),
		CashOut:      cashOut,
	}
	if cashOut {
		c.logger.WithField("date", decisionDate.Format("2006-01-02")).
			Warn("CASH_OUT active, holding no positions")
		return target, nil
	}

	selected := rank(gated)
	if len(selected) > c.cfg.TopN {
		selected = selected[:c.cfg.TopN]
	}
	if len(selected) == 0 {
		return target, nil
	}

	// weight ∝ 1/(risk + ε): calmer instruments carry more
	raw := make([]float64, len(selected))
	total := 0.0
	for i := range selected {
		proxy, degraded := c.riskProxy(bars[selected[i].Code], decisionDate)
		selected[i].RiskProxy = proxy
		selected[i].Degraded = degraded
		raw[i] = 1 / (proxy + c.cfg.RiskEpsilon)
		total += raw[i]
	}

	for i := range selected {
		w := raw[i] / total
		selected[i].Weight = w
		target.Weights[selected[i].Code] = w
	}

	c.logger.WithFields(map[string]interface{}{
		"date":         decisionDate.Format("2006-01-02"),
		"positions":    len(target.Weights),
		"total_weight": target.TotalWeight(),
	}).Info("Portfolio constructed")

	return target, selected
}

// riskProxy is the realized volatility of the trailing return window on
// bars strictly before the decision date. Too little history substitutes
// the configured default and flags the degradation.
func (c *Constructor) riskProxy(bars []contracts.PriceBar, decisionDate time.Time) (float64, bool) {
	usable := contracts.TruncateBars(bars, decisionDate)
	returns := contracts.DailyReturns(contracts.Closes(usable))
	if len(returns) < c.cfg.RiskWindowDays {
		return c.cfg.DefaultRiskProxy, true
	}

	window := returns[len(returns)-c.cfg.RiskWindowDays:]
	mean := 0.0
	for _, r := range window {
		mean += r
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, r := range window {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(window))

	return math.Sqrt(variance), false
}

func rank(gated map[string]float64) []Selection {
	out := make([]Selection, 0, len(gated))
	for code, score := range gated {
		out = append(out, Selection{Code: code, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Code < out[j].Code
	})
	return out
}
