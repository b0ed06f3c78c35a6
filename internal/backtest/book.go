package backtest

import (
	"math"
	"sort"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Book tracks a weight-allocated portfolio through a simulation
// ⭐ SSOT: 백테스트 장부 상태는 여기서만
//
// The book holds fractional weights rather than shares: rebalancing moves
// the allocation to the target and charges costs on one-way turnover,
// mark-to-market compounds the equity by the weighted day return and lets
// the weights drift with prices.
type Book struct {
	logger *logger.Logger

	equity  float64
	weights map[string]float64
	cashOut bool

	rebalances int
	turnover   float64
	costPaid   float64
}

// BookStats holds cumulative simulation statistics
type BookStats struct {
	Rebalances int
	Turnover   float64
	CostPaid   float64
}

// NewBook creates an empty book
func NewBook(log *logger.Logger) *Book {
	return &Book{logger: log, weights: make(map[string]float64)}
}

// Initialize resets the book with starting equity
func (b *Book) Initialize(equity float64) {
	b.equity = equity
	b.weights = make(map[string]float64)
	b.cashOut = false
	b.rebalances = 0
	b.turnover = 0
	b.costPaid = 0
}

// Rebalance moves the allocation to the target weights, charging costBps
// on one-way turnover. An empty target (cash-out) sells everything.
func (b *Book) Rebalance(target *contracts.TargetWeights, costBps float64) {
	next := make(map[string]float64, len(target.Weights))
	for code, w := range target.Weights {
		next[code] = w
	}

	// 합산은 코드 정렬 순서로: 부동소수 덧셈 순서까지 재현 가능해야 한다
	turnover := 0.0
	for _, code := range sortedCodes(next) {
		turnover += math.Abs(next[code] - b.weights[code])
	}
	for _, code := range sortedCodes(b.weights) {
		if _, ok := next[code]; !ok {
			turnover += b.weights[code]
		}
	}

	cost := b.equity * turnover * costBps / 10_000
	b.equity -= cost
	b.weights = next
	b.cashOut = target.CashOut

	b.rebalances++
	b.turnover += turnover
	b.costPaid += cost

	b.logger.WithFields(map[string]interface{}{
		"positions": len(next),
		"turnover":  turnover,
		"cost":      cost,
		"cash_out":  target.CashOut,
	}).Debug("Book rebalanced")
}

// MarkToMarket applies one day of instrument returns and returns the
// portfolio day return. Instruments without a return hold flat; the
// unallocated remainder is cash at zero return. Weights drift with prices.
func (b *Book) MarkToMarket(returns map[string]float64) float64 {
	codes := sortedCodes(b.weights)

	dayReturn := 0.0
	for _, code := range codes {
		dayReturn += b.weights[code] * returns[code]
	}

	b.equity *= 1 + dayReturn
	if dayReturn != 0 {
		for _, code := range codes {
			b.weights[code] *= (1 + returns[code]) / (1 + dayReturn)
		}
	}
	return dayReturn
}

// Equity returns the current book equity
func (b *Book) Equity() float64 {
	return b.equity
}

// CashOut reports whether the book is fully in cash by policy
func (b *Book) CashOut() bool {
	return b.cashOut
}

// Held returns the codes with a nonzero allocation
func (b *Book) Held() []string {
	codes := make([]string, 0, len(b.weights))
	for code, w := range b.weights {
		if w != 0 {
			codes = append(codes, code)
		}
	}
	return codes
}

// Stats returns cumulative statistics
func (b *Book) Stats() BookStats {
	return BookStats{
		Rebalances: b.rebalances,
		Turnover:   b.turnover,
		CostPaid:   b.costPaid,
	}
}

func sortedCodes(weights map[string]float64) []string {
	codes := make([]string, 0, len(weights))
	for code := range weights {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
