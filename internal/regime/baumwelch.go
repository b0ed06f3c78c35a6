package regime

import (
	"fmt"
	"math"
	"sort"
)

const (
	varianceFloor = 1e-10
	emissionFloor = 1e-300
	convergeTol   = 1e-6
)

// BaumWelch is the shipped Fitter: a Gaussian HMM trained by
// expectation-maximization with scaled forward-backward passes.
//
// 결정성이 핵심이다. 난수 초기화 대신 분위수로 평균을 깔고 반복 횟수를
// 고정 상한으로 막는다. 같은 수익률 시계열은 언제나 같은 적합을 낸다.
type BaumWelch struct {
	maxIterations int
}

// NewBaumWelch creates a fitter with a fixed iteration cap
func NewBaumWelch(maxIterations int) *BaumWelch {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &BaumWelch{maxIterations: maxIterations}
}

// Fit trains the model on a return series.
// Fails on degenerate input (too short, zero variance) or numerical
// breakdown; callers treat any error as "use the fallback rule".
func (bw *BaumWelch) Fit(returns []float64, states int) (*FitResult, error) {
	k := states
	n := len(returns)
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 states, got %d", k)
	}
	if n < k*2 {
		return nil, fmt.Errorf("need at least %d observations for %d states, got %d", k*2, k, n)
	}

	means, variance, err := quantileInit(returns, k)
	if err != nil {
		return nil, err
	}
	variances := make([]float64, k)
	for i := range variances {
		variances[i] = variance
	}

	pi := make([]float64, k)
	trans := make([][]float64, k)
	for i := range trans {
		pi[i] = 1.0 / float64(k)
		trans[i] = make([]float64, k)
		for j := range trans[i] {
			if i == j {
				trans[i][j] = 0.85 // sticky prior: regimes persist
			} else {
				trans[i][j] = 0.15 / float64(k-1)
			}
		}
	}

	prevLL := math.Inf(-1)
	iterations := 0

	for iter := 0; iter < bw.maxIterations; iter++ {
		iterations = iter + 1

		emit := emissions(returns, means, variances)

		alpha, scales, err := forward(emit, pi, trans)
		if err != nil {
			return nil, err
		}
		beta := backward(emit, trans, scales)

		loglik := logLikelihood(scales)
		if math.IsNaN(loglik) || math.IsInf(loglik, 0) {
			return nil, fmt.Errorf("log-likelihood diverged at iteration %d", iterations)
		}

		gamma := stateProbs(alpha, beta)
		reestimate(returns, emit, alpha, beta, gamma, scales, pi, trans, means, variances)

		if math.Abs(loglik-prevLL) < convergeTol {
			break
		}
		prevLL = loglik
	}

	// One closing forward pass so the filtered probabilities and the
	// reported likelihood reflect the final parameters.
	emit := emissions(returns, means, variances)
	alpha, scales, err := forward(emit, pi, trans)
	if err != nil {
		return nil, err
	}
	final := make([]float64, k)
	copy(final, alpha[n-1])

	return &FitResult{
		Means:         means,
		Variances:     variances,
		Transition:    trans,
		FinalProbs:    final,
		LogLikelihood: logLikelihood(scales),
		Iterations:    iterations,
	}, nil
}

func logLikelihood(scales []float64) float64 {
	ll := 0.0
	for _, c := range scales {
		ll += math.Log(c)
	}
	return ll
}

// quantileInit seeds state means at evenly spaced quantiles of the sorted
// series so the fit starts from the data's own shape, not from chance.
func quantileInit(returns []float64, k int) ([]float64, float64, error) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	means := make([]float64, k)
	n := len(sorted)
	for i := 0; i < k; i++ {
		q := (2*float64(i) + 1) / (2 * float64(k))
		idx := int(q * float64(n-1))
		means[i] = sorted[idx]
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(n)

	if variance < varianceFloor {
		return nil, 0, fmt.Errorf("return series has no variance")
	}
	return means, variance, nil
}

func emissions(returns, means, variances []float64) [][]float64 {
	n, k := len(returns), len(means)
	emit := make([][]float64, n)
	for t := 0; t < n; t++ {
		emit[t] = make([]float64, k)
		for i := 0; i < k; i++ {
			emit[t][i] = gaussianPDF(returns[t], means[i], variances[i])
			if emit[t][i] < emissionFloor {
				emit[t][i] = emissionFloor
			}
		}
	}
	return emit
}

func gaussianPDF(x, mean, variance float64) float64 {
	if variance < varianceFloor {
		variance = varianceFloor
	}
	diff := x - mean
	return math.Exp(-diff*diff/(2*variance)) / math.Sqrt(2*math.Pi*variance)
}

// forward runs the scaled forward pass. Each alpha row is normalized to
// sum 1, so the last row is the filtered state distribution directly.
func forward(emit [][]float64, pi []float64, trans [][]float64) ([][]float64, []float64, error) {
	n, k := len(emit), len(pi)
	alpha := make([][]float64, n)
	scales := make([]float64, n)

	alpha[0] = make([]float64, k)
	for i := 0; i < k; i++ {
		alpha[0][i] = pi[i] * emit[0][i]
		scales[0] += alpha[0][i]
	}
	if scales[0] <= 0 {
		return nil, nil, fmt.Errorf("forward pass underflow at t=0")
	}
	for i := 0; i < k; i++ {
		alpha[0][i] /= scales[0]
	}

	for t := 1; t < n; t++ {
		alpha[t] = make([]float64, k)
		for j := 0; j < k; j++ {
			sum := 0.0
			for i := 0; i < k; i++ {
				sum += alpha[t-1][i] * trans[i][j]
			}
			alpha[t][j] = sum * emit[t][j]
			scales[t] += alpha[t][j]
		}
		if scales[t] <= 0 {
			return nil, nil, fmt.Errorf("forward pass underflow at t=%d", t)
		}
		for j := 0; j < k; j++ {
			alpha[t][j] /= scales[t]
		}
	}
	return alpha, scales, nil
}

func backward(emit [][]float64, trans [][]float64, scales []float64) [][]float64 {
	n, k := len(emit), len(trans)
	beta := make([][]float64, n)
	beta[n-1] = make([]float64, k)
	for i := 0; i < k; i++ {
		beta[n-1][i] = 1
	}

	for t := n - 2; t >= 0; t-- {
		beta[t] = make([]float64, k)
		for i := 0; i < k; i++ {
			sum := 0.0
			for j := 0; j < k; j++ {
				sum += trans[i][j] * emit[t+1][j] * beta[t+1][j]
			}
			beta[t][i] = sum / scales[t+1]
		}
	}
	return beta
}

func stateProbs(alpha, beta [][]float64) [][]float64 {
	n, k := len(alpha), len(alpha[0])
	gamma := make([][]float64, n)
	for t := 0; t < n; t++ {
		gamma[t] = make([]float64, k)
		total := 0.0
		for i := 0; i < k; i++ {
			gamma[t][i] = alpha[t][i] * beta[t][i]
			total += gamma[t][i]
		}
		if total > 0 {
			for i := 0; i < k; i++ {
				gamma[t][i] /= total
			}
		}
	}
	return gamma
}

// reestimate performs the M-step in place
func reestimate(returns []float64, emit, alpha, beta, gamma [][]float64, scales []float64, pi []float64, trans [][]float64, means, variances []float64) {
	n, k := len(returns), len(pi)

	copy(pi, gamma[0])

	for i := 0; i < k; i++ {
		denom := 0.0
		for t := 0; t < n-1; t++ {
			denom += gamma[t][i]
		}
		if denom <= 0 {
			continue // starved state keeps its previous row
		}
		for j := 0; j < k; j++ {
			num := 0.0
			for t := 0; t < n-1; t++ {
				num += alpha[t][i] * trans[i][j] * emit[t+1][j] * beta[t+1][j] / scales[t+1]
			}
			trans[i][j] = num / denom
		}
		rowSum := 0.0
		for j := 0; j < k; j++ {
			rowSum += trans[i][j]
		}
		if rowSum > 0 {
			for j := 0; j < k; j++ {
				trans[i][j] /= rowSum
			}
		}
	}

	for i := 0; i < k; i++ {
		weight := 0.0
		weighted := 0.0
		for t := 0; t < n; t++ {
			weight += gamma[t][i]
			weighted += gamma[t][i] * returns[t]
		}
		if weight <= 0 {
			continue
		}
		means[i] = weighted / weight

		spread := 0.0
		for t := 0; t < n; t++ {
			diff := returns[t] - means[i]
			spread += gamma[t][i] * diff * diff
		}
		variances[i] = spread / weight
		if variances[i] < varianceFloor {
			variances[i] = varianceFloor
		}
	}
}
