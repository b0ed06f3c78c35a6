package policy

import (
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Rule names recorded in run output when a gate fires
const (
	RuleCashOut       = "CASH_OUT"
	RuleSidewaysScale = "SIDEWAYS_SCALE"
)

// Cash-out modes
const (
	ModeZero  = "zero"
	ModeHalve = "halve"
)

// Gate applies regime-conditioned policy rules to blended scores.
// ⭐ SSOT: 정책 게이트 판정은 여기서만
//
// 게이트는 선택적 오버레이다. 레짐이 UNKNOWN이거나 추세 신호가 없으면
// 아무 규칙도 적용하지 않고 점수를 그대로 통과시킨다.
type Gate struct {
	cfg    strategyconfig.Gates
	logger *logger.Logger
}

// NewGate creates a policy gate
func NewGate(cfg strategyconfig.Gates, log *logger.Logger) *Gate {
	return &Gate{cfg: cfg, logger: log}
}

// Result carries the gated scores and which rules fired.
// CashOut is true only in zero mode: the portfolio must hold no positions.
type Result struct {
	Scores       map[string]float64
	CashOut      bool
	RulesApplied []string
}

// Apply runs the rules in fixed order against a copy of scores.
//
// (1) CASH_OUT fires only on dual confirmation: regime BEAR and the
// independent trend signal bearish at the same time. A bear label alone is
// not enough: volatility-sensitive classifiers mislabel choppy bull
// markets, and the trend check vetoes those. trendOK=false (benchmark too
// thin to judge) blocks confirmation entirely.
// (2) SIDEWAYS scales every score by the configured multiplier.
// (3) UNKNOWN or missing regime: no rule applies.
func (g *Gate) Apply(scores map[string]float64, regime *contracts.RegimeState, trendBearish, trendOK bool) Result {
	result := Result{Scores: make(map[string]float64, len(scores))}
	for code, s := range scores {
		result.Scores[code] = s
	}

	if !regime.Known() {
		return result
	}

	if regime.IsBear() && trendOK && trendBearish {
		result.RulesApplied = append(result.RulesApplied, RuleCashOut)
		switch g.cfg.CashOutMode {
		case ModeHalve:
			for code := range result.Scores {
				result.Scores[code] *= 0.5
			}
		default: // zero
			for code := range result.Scores {
				result.Scores[code] = 0
			}
			result.CashOut = true
		}
		g.logRule(RuleCashOut, regime, len(scores))
		return result
	}

	if regime.Label == contracts.RegimeSideways {
		result.RulesApplied = append(result.RulesApplied, RuleSidewaysScale)
		for code := range result.Scores {
			result.Scores[code] *= g.cfg.SidewaysMultiplier
		}
		g.logRule(RuleSidewaysScale, regime, len(scores))
	}

	return result
}

func (g *Gate) logRule(rule string, regime *contracts.RegimeState, instruments int) {
	g.logger.WithFields(map[string]interface{}{
		"rule":        rule,
		"regime":      string(regime.Label),
		"source":      string(regime.Source),
		"confidence":  regime.Confidence,
		"instruments": instruments,
	}).Info("Policy gate applied")
}
