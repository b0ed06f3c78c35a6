package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return nil, nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, data, err
	}

	return cfg, data, nil
}

// Default returns the documented default configuration.
// YAML values override these; Validate still runs on the merged result.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID:        "",
			Version:           "1",
			Timezone:          "UTC",
			DecisionTimeLocal: "16:30",
		},
		Technical: Technical{
			RollingWindow: 252,
			Weights: CategoryWeights{
				Trend: 0.35, Momentum: 0.30, Volume: 0.15, Volatility: 0.20,
			},
			RegimeWeights: RegimeWeights{
				Enable: false,
				Bull:   CategoryWeights{Trend: 0.40, Momentum: 0.35, Volume: 0.15, Volatility: 0.10},
				Bear:   CategoryWeights{Trend: 0.25, Momentum: 0.20, Volume: 0.15, Volatility: 0.40},
				Sideways: CategoryWeights{
					Trend: 0.25, Momentum: 0.25, Volume: 0.25, Volatility: 0.25,
				},
			},
		},
		Sentiment: Sentiment{
			BlendWeight:        0.40,
			DedupThreshold:     0.60,
			CurrentWindowDays:  3,
			BaselineWindowDays: 30,
			BuzzBaselineDays:   20,
			Weights:            SubSignalWeights{Buzz: 0.20, Surprise: 0.35, Relative: 0.25, Event: 0.20},
			EventPriorityHours: 48,
			EventPriorityWt:    0.70,
			SurpriseTrigger:    0.25,
			Deep:               DeepAnalysis{Enable: false, Weight: 0.30, TopK: 3, TimeoutMS: 2500},
		},
		Propagation: Propagation{
			Blend:            0.25,
			Tier1Weight:      0.50,
			Tier2Weight:      0.20,
			InvertCompetitor: true,
			CandidateWeight:  0.30,
		},
		Regime: Regime{
			States:            3,
			MinObservations:   60,
			MaxIterations:     100,
			FallbackMAWindow:  200,
			BenchmarkLookback: 500,
		},
		Gates: Gates{
			CashOutMode:        "zero",
			SidewaysMultiplier: 0.5,
		},
		Portfolio: Portfolio{
			TopN:             10,
			RiskWindowDays:   20,
			RiskEpsilon:      1e-4,
			DefaultRiskProxy: 0.02,
		},
		Backtest: Backtest{
			RebalanceDays: 5,
			CostBps:       10,
		},
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 위주 구성으로 해시 재현성 보장
// (aliases map은 encoding/json이 키 정렬하므로 안전)
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewDecisionSnapshot creates a parity snapshot for one decision date
func NewDecisionSnapshot(cfg *Config, yamlData []byte, gitCommit, decisionDate, weightsHash string) (*DecisionSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &DecisionSnapshot{
		ConfigHash:   hash,
		ConfigYAML:   string(yamlData),
		StrategyID:   cfg.Meta.StrategyID,
		GitCommit:    gitCommit,
		DecisionDate: decisionDate,
		WeightsHash:  weightsHash,
		CreatedAt:    time.Now(),
	}, nil
}
