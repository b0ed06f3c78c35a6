package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// TargetWeights is the final output of one decision date
// ⭐ SSOT: S6 → 실행 소비자 전달. 생성 후 불변.
// Σweight ≤ 1.0, CASH_OUT 시 Σweight = 0
type TargetWeights struct {
	DecisionDate time.Time          `json:"decision_date"`
	Weights      map[string]float64 `json:"weights"`
	CashOut      bool               `json:"cash_out"`
}

// TotalWeight returns the sum of all weights
func (t *TargetWeights) TotalWeight() float64 {
	total := 0.0
	for _, w := range t.Weights {
		total += w
	}
	return total
}

// Hash returns the SHA-256 of the canonical JSON encoding.
// encoding/json emits map keys in sorted order, so the hash is stable and
// two runs over identical inputs must produce identical hashes. This is
// the execution-parity check between simulation and live modes.
func (t *TargetWeights) Hash() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
