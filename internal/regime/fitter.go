package regime

// FitResult is the output of one Gaussian mixture-model fit.
// FinalProbs is the filtered state distribution at the last observation,
// which doubles as the classification confidence.
type FitResult struct {
	Means         []float64
	Variances     []float64
	Transition    [][]float64
	FinalProbs    []float64
	LogLikelihood float64
	Iterations    int
}

// Fitter fits a hidden-state model to a daily return series.
// 통계 적합기는 불투명 협력자다. 분류기는 결과 구조만 본다.
// Implementations must be deterministic: same series, same result.
type Fitter interface {
	Fit(returns []float64, states int) (*FitResult, error)
}
