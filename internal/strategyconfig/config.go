package strategyconfig

import "time"

// Config는 시그널→비중 파이프라인의 전체 전략 설정
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Universe    Universe    `yaml:"universe" json:"universe"`
	Technical   Technical   `yaml:"technical" json:"technical"`
	Sentiment   Sentiment   `yaml:"sentiment" json:"sentiment"`
	Propagation Propagation `yaml:"propagation" json:"propagation"`
	Regime      Regime      `yaml:"regime" json:"regime"`
	Gates       Gates       `yaml:"gates" json:"gates"`
	Portfolio   Portfolio   `yaml:"portfolio" json:"portfolio"`
	Backtest    Backtest    `yaml:"backtest" json:"backtest"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID        string `yaml:"strategy_id" json:"strategy_id"`
	Version           string `yaml:"version" json:"version"`
	Timezone          string `yaml:"timezone" json:"timezone"`
	DecisionTimeLocal string `yaml:"decision_time_local" json:"decision_time_local"` // HH:MM
}

// Universe 대상 종목과 벤치마크
type Universe struct {
	Benchmark   string   `yaml:"benchmark" json:"benchmark"`
	Instruments []string `yaml:"instruments" json:"instruments"` // 비어 있으면 instruments 테이블 전체
}

// Technical S2: 기술적 점수화
type Technical struct {
	RollingWindow int             `yaml:"rolling_window" json:"rolling_window"` // min-max 정규화 창 (기본 252)
	Weights       CategoryWeights `yaml:"weights" json:"weights"`
	RegimeWeights RegimeWeights   `yaml:"regime_weights" json:"regime_weights"`
}

// CategoryWeights 카테고리별 가중치 (합 = 1.0)
type CategoryWeights struct {
	Trend      float64 `yaml:"trend" json:"trend"`
	Momentum   float64 `yaml:"momentum" json:"momentum"`
	Volume     float64 `yaml:"volume" json:"volume"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// Sum returns the sum of all category weights
func (w CategoryWeights) Sum() float64 {
	return w.Trend + w.Momentum + w.Volume + w.Volatility
}

// RegimeWeights 레짐 조건부 카테고리 가중치
type RegimeWeights struct {
	Enable   bool            `yaml:"enable" json:"enable"`
	Bull     CategoryWeights `yaml:"bull" json:"bull"`
	Bear     CategoryWeights `yaml:"bear" json:"bear"`
	Sideways CategoryWeights `yaml:"sideways" json:"sideways"`
}

// Sentiment S3: 감성 복합 점수
type Sentiment struct {
	BlendWeight        float64          `yaml:"blend_weight" json:"blend_weight"` // blended = (1-w)·tech + w·sent
	RequireNews        bool             `yaml:"require_news" json:"require_news"` // true: 뉴스 없으면 랭킹 제외 (trace 기록)
	DedupThreshold     float64          `yaml:"dedup_threshold" json:"dedup_threshold"`
	CurrentWindowDays  int              `yaml:"current_window_days" json:"current_window_days"`
	BaselineWindowDays int              `yaml:"baseline_window_days" json:"baseline_window_days"`
	BuzzBaselineDays   int              `yaml:"buzz_baseline_days" json:"buzz_baseline_days"`
	Weights            SubSignalWeights `yaml:"weights" json:"weights"`
	EventPriorityHours int              `yaml:"event_priority_hours" json:"event_priority_hours"`
	EventPriorityWt    float64          `yaml:"event_priority_weight" json:"event_priority_weight"`
	SurpriseTrigger    float64          `yaml:"surprise_trigger" json:"surprise_trigger"` // 딥 분석 트리거 임계값
	Deep               DeepAnalysis     `yaml:"deep" json:"deep"`
}

// SubSignalWeights 감성 서브시그널 가중치 (합 = 1.0)
type SubSignalWeights struct {
	Buzz     float64 `yaml:"buzz" json:"buzz"`
	Surprise float64 `yaml:"surprise" json:"surprise"`
	Relative float64 `yaml:"relative" json:"relative"`
	Event    float64 `yaml:"event" json:"event"`
}

// Sum returns the sum of all sub-signal weights
func (w SubSignalWeights) Sum() float64 {
	return w.Buzz + w.Surprise + w.Relative + w.Event
}

// DeepAnalysis 외부 딥 분석 서비스 설정 (옵션, fail-open)
type DeepAnalysis struct {
	Enable    bool    `yaml:"enable" json:"enable"`
	Weight    float64 `yaml:"weight" json:"weight"` // 성공 시 합성 비중
	TopK      int     `yaml:"top_k" json:"top_k"`   // 우선순위 기사 수
	TimeoutMS int     `yaml:"timeout_ms" json:"timeout_ms"`
}

// Timeout returns the per-call deep-analysis budget
func (d DeepAnalysis) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// Propagation S4: 그래프 전파
type Propagation struct {
	Blend            float64           `yaml:"blend" json:"blend"` // enriched = (1-blend)·direct + blend·propagated
	Tier1Weight      float64           `yaml:"tier1_weight" json:"tier1_weight"`
	Tier2Weight      float64           `yaml:"tier2_weight" json:"tier2_weight"`
	InvertCompetitor bool              `yaml:"invert_competitor" json:"invert_competitor"`
	CandidateWeight  float64           `yaml:"candidate_weight" json:"candidate_weight"` // 후보 엣지 기본 weight
	Aliases          map[string]string `yaml:"aliases" json:"aliases"`                   // entity name → code
}

// TierWeight returns the decay weight for a tier (0 for unknown tiers)
func (p Propagation) TierWeight(tier int) float64 {
	switch tier {
	case 1:
		return p.Tier1Weight
	case 2:
		return p.Tier2Weight
	default:
		return 0
	}
}

// Regime S1: 레짐 분류 (게이트와 레짐 조건부 가중치가 참조)
type Regime struct {
	States            int `yaml:"states" json:"states"` // 은닉 상태 수 (기본 3)
	MinObservations   int `yaml:"min_observations" json:"min_observations"`
	MaxIterations     int `yaml:"max_iterations" json:"max_iterations"`
	FallbackMAWindow  int `yaml:"fallback_ma_window" json:"fallback_ma_window"`
	BenchmarkLookback int `yaml:"benchmark_lookback_days" json:"benchmark_lookback_days"`
}

// Gates S5: 정책 게이트
type Gates struct {
	CashOutMode        string  `yaml:"cash_out_mode" json:"cash_out_mode"` // zero | halve
	SidewaysMultiplier float64 `yaml:"sideways_multiplier" json:"sideways_multiplier"`
}

// Portfolio S6: 포트폴리오 구성
type Portfolio struct {
	TopN             int     `yaml:"top_n" json:"top_n"`
	RiskWindowDays   int     `yaml:"risk_window_days" json:"risk_window_days"`
	RiskEpsilon      float64 `yaml:"risk_epsilon" json:"risk_epsilon"`
	DefaultRiskProxy float64 `yaml:"default_risk_proxy" json:"default_risk_proxy"`
}

// Backtest 시뮬레이션 설정
type Backtest struct {
	RebalanceDays int     `yaml:"rebalance_days" json:"rebalance_days"`
	CostBps       float64 `yaml:"cost_bps" json:"cost_bps"`
}

// DecisionSnapshot 의사결정 스냅샷 (재현성/패리티 검증용)
type DecisionSnapshot struct {
	ConfigHash   string    `json:"config_hash"`
	ConfigYAML   string    `json:"config_yaml"`
	StrategyID   string    `json:"strategy_id"`
	GitCommit    string    `json:"git_commit"`
	DecisionDate string    `json:"decision_date"`
	WeightsHash  string    `json:"weights_hash"`
	CreatedAt    time.Time `json:"created_at"`
}
