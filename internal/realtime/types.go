package realtime

import (
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
)

// WeightsUpdate is the message pushed to WebSocket subscribers when a live
// run publishes a new decision
// ⭐ SSOT: 실시간 브로드캐스트 페이로드 구조
type WeightsUpdate struct {
	RunID        string             `json:"runId"`
	DecisionDate string             `json:"decisionDate"` // YYYY-MM-DD
	Regime       string             `json:"regime"`
	CashOut      bool               `json:"cashOut"`
	Weights      map[string]float64 `json:"weights"`
	Hash         string             `json:"hash"` // 실행 패리티 해시
	PublishedAt  time.Time          `json:"publishedAt"`
}

// NewWeightsUpdate builds the broadcast payload for one decision.
// The weights map is copied so the caller can keep mutating its own copy
// without racing the write pumps.
func NewWeightsUpdate(runID string, regime contracts.RegimeLabel, target *contracts.TargetWeights, hash string) *WeightsUpdate {
	weights := make(map[string]float64, len(target.Weights))
	for code, w := range target.Weights {
		weights[code] = w
	}

	return &WeightsUpdate{
		RunID:        runID,
		DecisionDate: target.DecisionDate.Format("2006-01-02"),
		Regime:       string(regime),
		CashOut:      target.CashOut,
		Weights:      weights,
		Hash:         hash,
		PublishedAt:  time.Now().UTC(),
	}
}
