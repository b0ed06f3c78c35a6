package contracts

// RegimeLabel is the coarse market-state classification
type RegimeLabel string

const (
	RegimeBull     RegimeLabel = "BULL"
	RegimeBear     RegimeLabel = "BEAR"
	RegimeSideways RegimeLabel = "SIDEWAYS"
	RegimeUnknown  RegimeLabel = "UNKNOWN"
)

// AllRegimeLabels returns every label, for metrics and validation
func AllRegimeLabels() []string {
	return []string{
		string(RegimeBull),
		string(RegimeBear),
		string(RegimeSideways),
		string(RegimeUnknown),
	}
}

// RegimeSource distinguishes classifier output from the fallback rule
type RegimeSource string

const (
	RegimeSourceClassifier RegimeSource = "classifier"
	RegimeSourceFallback   RegimeSource = "fallback"
)

// RegimeState is the market-state classification for one decision date
// ⭐ SSOT: S1에서 계산해 S2(가중치)와 S5(게이트)로 전달
// 매 결정일마다 새로 계산하며 생성 후 변경 금지. 호출 체인으로 명시적으로
// 전달하고 전역 상태에 저장하지 않는다.
type RegimeState struct {
	Label      RegimeLabel  `json:"label"`
	MeanReturn float64      `json:"mean_return"` // daily, of the selected state
	Volatility float64      `json:"volatility"`  // daily, of the selected state
	Confidence float64      `json:"confidence"`  // [0,1]
	Transition [][]float64  `json:"transition,omitempty"`
	Source     RegimeSource `json:"source"`
}

// IsBear reports a BEAR classification regardless of source
func (r *RegimeState) IsBear() bool {
	return r != nil && r.Label == RegimeBear
}

// Known reports whether the regime carries a usable label.
// Gating is an optional overlay: an UNKNOWN regime disables every gate.
func (r *RegimeState) Known() bool {
	return r != nil && r.Label != RegimeUnknown
}
