package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

// PipelineRunner is the single entry point the engine drives per date.
// brain.Orchestrator satisfies it; tests script it.
type PipelineRunner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// Engine replays the decision pipeline over a date range
// ⭐ SSOT: 백테스팅 실행은 여기서만
//
// Every run uses simulation mode, so the replay is exactly the live
// computation minus persistence. Weights decided on date D apply from D's
// session onward; the pipeline itself guarantees they only saw data
// through D-1.
type Engine struct {
	runner PipelineRunner
	prices contracts.PriceProvider
	logger *logger.Logger
}

// Config holds backtest configuration
type Config struct {
	StartDate     time.Time
	EndDate       time.Time
	RebalanceDays int     // trading days between pipeline runs
	CostBps       float64 // one-way transaction cost in basis points
}

// Result holds backtest results
type Result struct {
	Config         Config
	StartDate      time.Time
	EndDate        time.Time
	Duration       time.Duration
	TradingDays    int
	RebalanceCount int
	CashOutDays    int

	// Performance metrics
	InitialEquity    float64
	FinalEquity      float64
	TotalReturn      float64
	AnnualizedReturn float64
	CAGR             float64
	Volatility       float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	DailyWinRate     float64

	// Trading metrics
	Turnover float64
	CostPaid float64

	// Equity curve
	EquityCurve []EquityPoint

	// Per-date weight hashes, the determinism evidence
	WeightHashes map[string]string

	// Decision dates whose pipeline run failed (book held through them)
	FailedRuns []string
}

// EquityPoint represents a point in the equity curve
type EquityPoint struct {
	Date   time.Time
	Equity float64
	Return float64
}

// NewEngine creates a new backtest engine
func NewEngine(runner PipelineRunner, prices contracts.PriceProvider, log *logger.Logger) *Engine {
	return &Engine{runner: runner, prices: prices, logger: log}
}

// Run executes a backtest over the configured range
func (e *Engine) Run(ctx context.Context, config Config) (*Result, error) {
	if config.RebalanceDays < 1 {
		return nil, fmt.Errorf("rebalance_days must be >= 1, got %d", config.RebalanceDays)
	}
	if config.EndDate.Before(config.StartDate) {
		return nil, fmt.Errorf("end date %s before start date %s",
			config.EndDate.Format("2006-01-02"), config.StartDate.Format("2006-01-02"))
	}

	e.logger.WithFields(map[string]interface{}{
		"start_date":     config.StartDate.Format("2006-01-02"),
		"end_date":       config.EndDate.Format("2006-01-02"),
		"rebalance_days": config.RebalanceDays,
		"cost_bps":       config.CostBps,
	}).Info("Starting backtest")

	startTime := time.Now()

	result := &Result{
		Config:        config,
		StartDate:     config.StartDate,
		EndDate:       config.EndDate,
		InitialEquity: 1.0,
		EquityCurve:   make([]EquityPoint, 0),
		WeightHashes:  make(map[string]string),
	}

	book := NewBook(e.logger)
	book.Initialize(result.InitialEquity)
	cache := newPriceCache(e.prices, config.StartDate.AddDate(0, 0, -14), config.EndDate)

	current := config.StartDate
	sinceRebalance := config.RebalanceDays // 첫 거래일에 바로 리밸런스
	for !current.After(config.EndDate) {
		if current.Weekday() == time.Saturday || current.Weekday() == time.Sunday {
			current = current.AddDate(0, 0, 1)
			continue
		}
		result.TradingDays++

		if sinceRebalance >= config.RebalanceDays {
			dateKey := current.Format("2006-01-02")
			runResult, err := e.runner.Run(ctx, brain.RunConfig{
				DecisionDate: current,
				Mode:         contracts.ModeSimulation,
			})
			if err != nil {
				e.logger.WithError(err).WithField("date", dateKey).Warn("Pipeline run failed, book held")
				result.FailedRuns = append(result.FailedRuns, dateKey)
			} else {
				book.Rebalance(runResult.Weights, config.CostBps)
				result.WeightHashes[dateKey] = runResult.WeightsHash
				result.RebalanceCount++
			}
			sinceRebalance = 0
		}
		sinceRebalance++

		returns, err := e.dayReturns(ctx, cache, book.Held(), current)
		if err != nil {
			return nil, fmt.Errorf("mark to market %s: %w", current.Format("2006-01-02"), err)
		}
		dayReturn := book.MarkToMarket(returns)
		if book.CashOut() {
			result.CashOutDays++
		}

		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Date:   current,
			Equity: book.Equity(),
			Return: dayReturn,
		})

		current = current.AddDate(0, 0, 1)
	}

	result.Duration = time.Since(startTime)
	result.FinalEquity = book.Equity()
	stats := book.Stats()
	result.Turnover = stats.Turnover
	result.CostPaid = stats.CostPaid

	e.calculateMetrics(result)

	e.logger.WithFields(map[string]interface{}{
		"duration":     result.Duration.Seconds(),
		"trading_days": result.TradingDays,
		"rebalances":   result.RebalanceCount,
		"total_return": fmt.Sprintf("%.2f%%", result.TotalReturn*100),
		"sharpe_ratio": fmt.Sprintf("%.2f", result.SharpeRatio),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

// VerifyDeterminism replays the backtest twice and compares per-date weight
// hashes and the final equity bit for bit. Any divergence is a bug in the
// pipeline's determinism contract.
func (e *Engine) VerifyDeterminism(ctx context.Context, config Config) error {
	first, err := e.Run(ctx, config)
	if err != nil {
		return fmt.Errorf("first pass: %w", err)
	}
	second, err := e.Run(ctx, config)
	if err != nil {
		return fmt.Errorf("second pass: %w", err)
	}

	dates := make([]string, 0, len(first.WeightHashes))
	for date := range first.WeightHashes {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		if first.WeightHashes[date] != second.WeightHashes[date] {
			return fmt.Errorf("weight hash diverged on %s: %s vs %s",
				date, first.WeightHashes[date], second.WeightHashes[date])
		}
	}
	if len(second.WeightHashes) != len(first.WeightHashes) {
		return fmt.Errorf("rebalance count diverged: %d vs %d",
			len(first.WeightHashes), len(second.WeightHashes))
	}
	if first.FinalEquity != second.FinalEquity {
		return fmt.Errorf("final equity diverged: %v vs %v", first.FinalEquity, second.FinalEquity)
	}

	e.logger.WithFields(map[string]interface{}{
		"rebalances":   len(first.WeightHashes),
		"final_equity": first.FinalEquity,
	}).Info("Determinism verified")
	return nil
}

// dayReturns builds close-to-close returns for the held instruments.
// An instrument without a bar on the day holds flat.
func (e *Engine) dayReturns(ctx context.Context, cache *priceCache, held []string, day time.Time) (map[string]float64, error) {
	returns := make(map[string]float64, len(held))
	for _, code := range held {
		r, ok, err := cache.dayReturn(ctx, code, day)
		if err != nil {
			return nil, err
		}
		if ok {
			returns[code] = r
		}
	}
	return returns, nil
}

// calculateMetrics calculates performance metrics from the equity curve
func (e *Engine) calculateMetrics(result *Result) {
	if len(result.EquityCurve) == 0 {
		return
	}

	result.TotalReturn = result.FinalEquity/result.InitialEquity - 1

	years := float64(result.TradingDays) / 252.0
	if years > 0 {
		result.AnnualizedReturn = result.TotalReturn / years
		result.CAGR = math.Pow(result.FinalEquity/result.InitialEquity, 1.0/years) - 1.0
	}

	dailyReturns := make([]float64, 0, len(result.EquityCurve))
	winning := 0
	for _, point := range result.EquityCurve {
		dailyReturns = append(dailyReturns, point.Return)
		if point.Return > 0 {
			winning++
		}
	}
	result.DailyWinRate = float64(winning) / float64(len(dailyReturns))

	// Volatility (annualized)
	result.Volatility = stddev(dailyReturns) * math.Sqrt(252)
	if result.Volatility > 0 {
		result.SharpeRatio = result.AnnualizedReturn / result.Volatility
	}

	// Sortino: downside deviation only
	downside := make([]float64, 0)
	for _, r := range dailyReturns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	downsideDeviation := stddev(downside) * math.Sqrt(252)
	if downsideDeviation > 0 {
		result.SortinoRatio = result.AnnualizedReturn / downsideDeviation
	}

	result.MaxDrawdown = maxDrawdown(result.EquityCurve)
}

func stddev(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	worst := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		drawdown := (peak - point.Equity) / peak
		if drawdown > worst {
			worst = drawdown
		}
	}
	return worst
}

// priceCache lazily loads each instrument's bars once for the whole range
type priceCache struct {
	prices contracts.PriceProvider
	from   time.Time
	to     time.Time
	bars   map[string][]contracts.PriceBar
}

func newPriceCache(prices contracts.PriceProvider, from, to time.Time) *priceCache {
	return &priceCache{
		prices: prices,
		from:   from,
		to:     to,
		bars:   make(map[string][]contracts.PriceBar),
	}
}

// dayReturn returns the close-to-close return ending on day. ok is false
// when the instrument has no bar that day or no prior close to compare.
func (c *priceCache) dayReturn(ctx context.Context, code string, day time.Time) (float64, bool, error) {
	bars, loaded := c.bars[code]
	if !loaded {
		var err error
		bars, err = c.prices.GetPriceHistory(ctx, code, c.from, c.to)
		if err != nil {
			return 0, false, fmt.Errorf("price history for %s: %w", code, err)
		}
		c.bars[code] = bars
	}

	// First bar at or after day
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(day) })
	if i >= len(bars) || !bars[i].Date.Equal(day) || i == 0 {
		return 0, false, nil
	}
	prev := bars[i-1].Close
	if prev == 0 {
		return 0, false, nil
	}
	return bars[i].Close/prev - 1, true, nil
}
