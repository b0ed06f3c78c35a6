package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"
)

// ValidationError 검증 실패 (해당 결정일 계산 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (fail-fast: 잘못된 설정으로는 어떤 비중도 계산하지 않음)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if err := validateHHMM(cfg.Meta.DecisionTimeLocal); err != nil {
		return ValidationError{"meta.decision_time_local", err.Error()}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
		return ValidationError{"meta.timezone", "unknown timezone"}
	}

	// === Universe ===
	if cfg.Universe.Benchmark == "" {
		return ValidationError{"universe.benchmark", "required"}
	}
	for i, code := range cfg.Universe.Instruments {
		if code == "" {
			return ValidationError{fmt.Sprintf("universe.instruments[%d]", i), "empty code"}
		}
	}

	// === Technical ===
	if cfg.Technical.RollingWindow < 2 {
		return ValidationError{"technical.rolling_window", "must be >= 2"}
	}
	if err := validateCategoryWeights(cfg.Technical.Weights); err != nil {
		return ValidationError{"technical.weights", err.Error()}
	}
	if cfg.Technical.RegimeWeights.Enable {
		for _, rw := range []struct {
			field string
			w     CategoryWeights
		}{
			{"technical.regime_weights.bull", cfg.Technical.RegimeWeights.Bull},
			{"technical.regime_weights.bear", cfg.Technical.RegimeWeights.Bear},
			{"technical.regime_weights.sideways", cfg.Technical.RegimeWeights.Sideways},
		} {
			if err := validateCategoryWeights(rw.w); err != nil {
				return ValidationError{rw.field, err.Error()}
			}
		}
	}

	// === Sentiment ===
	if cfg.Sentiment.BlendWeight < 0 || cfg.Sentiment.BlendWeight > 1 {
		return ValidationError{"sentiment.blend_weight", "must be in [0, 1]"}
	}
	if cfg.Sentiment.DedupThreshold <= 0 || cfg.Sentiment.DedupThreshold > 1 {
		return ValidationError{"sentiment.dedup_threshold", "must be in (0, 1]"}
	}
	if cfg.Sentiment.CurrentWindowDays < 1 {
		return ValidationError{"sentiment.current_window_days", "must be >= 1"}
	}
	// baseline은 current window 시작 이전에만 위치: 길이 자체는 1 이상이면 됨
	if cfg.Sentiment.BaselineWindowDays < 1 {
		return ValidationError{"sentiment.baseline_window_days", "must be >= 1"}
	}
	if cfg.Sentiment.BuzzBaselineDays < 2 {
		return ValidationError{"sentiment.buzz_baseline_days", "must be >= 2"}
	}
	if math.Abs(cfg.Sentiment.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"sentiment.weights", fmt.Sprintf("must sum to 1.0, got %.4f", cfg.Sentiment.Weights.Sum())}
	}
	if cfg.Sentiment.EventPriorityHours <= 0 {
		return ValidationError{"sentiment.event_priority_hours", "must be > 0"}
	}
	if cfg.Sentiment.EventPriorityWt < 0 || cfg.Sentiment.EventPriorityWt > 1 {
		return ValidationError{"sentiment.event_priority_weight", "must be in [0, 1]"}
	}
	if cfg.Sentiment.SurpriseTrigger <= 0 {
		return ValidationError{"sentiment.surprise_trigger", "must be > 0"}
	}
	if cfg.Sentiment.Deep.Enable {
		if cfg.Sentiment.Deep.Weight < 0 || cfg.Sentiment.Deep.Weight > 1 {
			return ValidationError{"sentiment.deep.weight", "must be in [0, 1]"}
		}
		if cfg.Sentiment.Deep.TopK < 1 {
			return ValidationError{"sentiment.deep.top_k", "must be >= 1"}
		}
		if cfg.Sentiment.Deep.TimeoutMS <= 0 {
			return ValidationError{"sentiment.deep.timeout_ms", "must be > 0"}
		}
	}

	// === Propagation ===
	if cfg.Propagation.Blend < 0 || cfg.Propagation.Blend >= 1 {
		return ValidationError{"propagation.blend", "must be in [0, 1)"}
	}
	if cfg.Propagation.Tier1Weight <= 0 || cfg.Propagation.Tier1Weight > 1 {
		return ValidationError{"propagation.tier1_weight", "must be in (0, 1]"}
	}
	if cfg.Propagation.Tier2Weight <= 0 || cfg.Propagation.Tier2Weight > 1 {
		return ValidationError{"propagation.tier2_weight", "must be in (0, 1]"}
	}
	if cfg.Propagation.Tier2Weight > cfg.Propagation.Tier1Weight {
		return ValidationError{"propagation.tier2_weight", "must be <= tier1_weight"}
	}
	if cfg.Propagation.CandidateWeight <= 0 || cfg.Propagation.CandidateWeight > 1 {
		return ValidationError{"propagation.candidate_weight", "must be in (0, 1]"}
	}
	for name, code := range cfg.Propagation.Aliases {
		if name == "" || code == "" {
			return ValidationError{"propagation.aliases", "empty name or code"}
		}
	}

	// === Regime ===
	if cfg.Regime.States < 2 {
		return ValidationError{"regime.states", "must be >= 2"}
	}
	if cfg.Regime.MinObservations < 10 {
		return ValidationError{"regime.min_observations", "must be >= 10"}
	}
	if cfg.Regime.MaxIterations < 1 {
		return ValidationError{"regime.max_iterations", "must be >= 1"}
	}
	if cfg.Regime.FallbackMAWindow < 20 {
		return ValidationError{"regime.fallback_ma_window", "must be >= 20"}
	}
	if cfg.Regime.BenchmarkLookback < cfg.Regime.MinObservations {
		return ValidationError{"regime.benchmark_lookback_days", "must be >= min_observations"}
	}

	// === Gates ===
	if cfg.Gates.CashOutMode != "zero" && cfg.Gates.CashOutMode != "halve" {
		return ValidationError{"gates.cash_out_mode", "must be zero or halve"}
	}
	if cfg.Gates.SidewaysMultiplier <= 0 || cfg.Gates.SidewaysMultiplier > 1 {
		return ValidationError{"gates.sideways_multiplier", "must be in (0, 1]"}
	}

	// === Portfolio ===
	if cfg.Portfolio.TopN < 1 {
		return ValidationError{"portfolio.top_n", "must be >= 1"}
	}
	if cfg.Portfolio.RiskWindowDays < 2 {
		return ValidationError{"portfolio.risk_window_days", "must be >= 2"}
	}
	if cfg.Portfolio.RiskEpsilon <= 0 {
		return ValidationError{"portfolio.risk_epsilon", "must be > 0"}
	}
	if cfg.Portfolio.DefaultRiskProxy <= 0 {
		return ValidationError{"portfolio.default_risk_proxy", "must be > 0"}
	}

	// === Backtest ===
	if cfg.Backtest.RebalanceDays < 1 {
		return ValidationError{"backtest.rebalance_days", "must be >= 1"}
	}
	if cfg.Backtest.CostBps < 0 {
		return ValidationError{"backtest.cost_bps", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Sentiment.BlendWeight > 0.6 {
		warnings = append(warnings, Warning{
			Code:    "SENTIMENT_HEAVY",
			Message: "blend_weight > 0.6: 감성 비중 과대, 기술 점수가 묻힐 수 있음",
		})
	}

	if cfg.Portfolio.TopN < 5 {
		warnings = append(warnings, Warning{
			Code:    "CONCENTRATED",
			Message: "top_n < 5: 집중 리스크 높음",
		})
	}

	if cfg.Sentiment.Deep.Enable && len(cfg.Propagation.Aliases) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_ALIASES",
			Message: "딥 분석 활성인데 alias 맵이 비어 있음: 후보 엣지 대부분이 드롭됨",
		})
	}

	if cfg.Propagation.Blend > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "PROPAGATION_HEAVY",
			Message: "propagation.blend > 0.5: 전파값이 직접 감성을 지배함",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateHHMM(s string) error {
	re := regexp.MustCompile(`^\d{2}:\d{2}$`)
	if !re.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

func validateCategoryWeights(w CategoryWeights) error {
	for _, v := range []float64{w.Trend, w.Momentum, w.Volume, w.Volatility} {
		if v < 0 {
			return errors.New("weights must be >= 0")
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("must sum to 1.0, got %.4f", w.Sum())
	}
	return nil
}
