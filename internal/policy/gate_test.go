package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

func testGate() *Gate {
	return NewGate(strategyconfig.Default().Gates, logger.Nop())
}

func regimeWith(label contracts.RegimeLabel) *contracts.RegimeState {
	return &contracts.RegimeState{
		Label:      label,
		Confidence: 0.8,
		Source:     contracts.RegimeSourceClassifier,
	}
}

func sampleScores() map[string]float64 {
	return map[string]float64{"AAA": 0.9, "BBB": 0.5, "CCC": 0.2}
}

func TestApply_DualConfirmation(t *testing.T) {
	tests := []struct {
		name         string
		label        contracts.RegimeLabel
		trendBearish bool
		wantCashOut  bool
	}{
		{"bear regime with bearish trend fires", contracts.RegimeBear, true, true},
		{"bear regime with bullish trend held back", contracts.RegimeBear, false, false},
		{"bull regime with bearish trend held back", contracts.RegimeBull, true, false},
		{"bull regime with bullish trend quiet", contracts.RegimeBull, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testGate().Apply(sampleScores(), regimeWith(tt.label), tt.trendBearish, true)

			assert.Equal(t, tt.wantCashOut, result.CashOut)
			if tt.wantCashOut {
				assert.Contains(t, result.RulesApplied, RuleCashOut)
				for code, s := range result.Scores {
					assert.Zero(t, s, "score for %s should be zeroed", code)
				}
			} else {
				assert.NotContains(t, result.RulesApplied, RuleCashOut)
				assert.Equal(t, sampleScores(), result.Scores)
			}
		})
	}
}

func TestApply_ThinTrendSignalBlocksCashOut(t *testing.T) {
	result := testGate().Apply(sampleScores(), regimeWith(contracts.RegimeBear), true, false)

	assert.False(t, result.CashOut)
	assert.Empty(t, result.RulesApplied)
	assert.Equal(t, sampleScores(), result.Scores)
}

func TestApply_HalveMode(t *testing.T) {
	cfg := strategyconfig.Default().Gates
	cfg.CashOutMode = ModeHalve
	gate := NewGate(cfg, logger.Nop())

	result := gate.Apply(sampleScores(), regimeWith(contracts.RegimeBear), true, true)

	assert.False(t, result.CashOut) // softened, portfolio still constructed
	assert.Contains(t, result.RulesApplied, RuleCashOut)
	assert.InDelta(t, 0.45, result.Scores["AAA"], 1e-12)
	assert.InDelta(t, 0.25, result.Scores["BBB"], 1e-12)
}

func TestApply_SidewaysScaling(t *testing.T) {
	result := testGate().Apply(sampleScores(), regimeWith(contracts.RegimeSideways), false, true)

	assert.False(t, result.CashOut)
	assert.Equal(t, []string{RuleSidewaysScale}, result.RulesApplied)
	assert.InDelta(t, 0.45, result.Scores["AAA"], 1e-12)
	assert.InDelta(t, 0.25, result.Scores["BBB"], 1e-12)
	assert.InDelta(t, 0.10, result.Scores["CCC"], 1e-12)
}

func TestApply_UnknownRegimeNoGates(t *testing.T) {
	result := testGate().Apply(sampleScores(), regimeWith(contracts.RegimeUnknown), true, true)
	assert.Empty(t, result.RulesApplied)
	assert.Equal(t, sampleScores(), result.Scores)

	result = testGate().Apply(sampleScores(), nil, true, true)
	assert.Empty(t, result.RulesApplied)
	assert.Equal(t, sampleScores(), result.Scores)
}

func TestApply_InputNotMutated(t *testing.T) {
	scores := sampleScores()
	result := testGate().Apply(scores, regimeWith(contracts.RegimeBear), true, true)

	require.True(t, result.CashOut)
	assert.Equal(t, sampleScores(), scores)
}
