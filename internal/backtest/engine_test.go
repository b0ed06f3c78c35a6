package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

// 2025-06-02 is a Monday
func june(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

// scriptedRunner plays back canned pipeline outputs per decision date.
// With flaky set, a repeated date returns a different allocation, which a
// determinism check must catch.
type scriptedRunner struct {
	weights map[string]map[string]float64
	cashOut map[string]bool
	errs    map[string]error
	flaky   bool
	seen    map[string]int
}

func (s *scriptedRunner) Run(_ context.Context, config brain.RunConfig) (*brain.RunResult, error) {
	key := config.DecisionDate.Format("2006-01-02")
	if s.seen == nil {
		s.seen = make(map[string]int)
	}
	s.seen[key]++

	if err := s.errs[key]; err != nil {
		return nil, err
	}
	weights := s.weights[key]
	if s.flaky && s.seen[key] > 1 {
		weights = map[string]float64{"999999": 1.0}
	}

	tw := &contracts.TargetWeights{
		DecisionDate: config.DecisionDate,
		Weights:      weights,
		CashOut:      s.cashOut[key],
	}
	hash, err := tw.Hash()
	if err != nil {
		return nil, err
	}
	return &brain.RunResult{
		RunID:        config.RunID,
		DecisionDate: config.DecisionDate,
		Mode:         config.Mode,
		Success:      true,
		Weights:      tw,
		WeightsHash:  hash,
	}, nil
}

type fakePrices struct {
	bars map[string][]contracts.PriceBar
	errs map[string]error
}

func (f *fakePrices) GetPriceHistory(_ context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	var out []contracts.PriceBar
	for _, b := range f.bars[code] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// weekdayBars assigns closes to successive weekdays starting at from
func weekdayBars(code string, from time.Time, closes []float64) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, 0, len(closes))
	d := from
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		bars = append(bars, contracts.PriceBar{Code: code, Date: d, Close: c, Volume: 1})
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func growth(start, rate float64, n int) []float64 {
	out := make([]float64, n)
	v := start
	for i := 0; i < n; i++ {
		out[i] = v
		v *= 1 + rate
	}
	return out
}

func TestEngine_SingleAssetCompounding(t *testing.T) {
	// A rises 1% per trading day; fully allocated from the first day.
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"005930": weekdayBars("005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), growth(100, 0.01, 6)),
	}}
	runner := &scriptedRunner{weights: map[string]map[string]float64{
		"2025-06-02": {"005930": 1.0},
	}}
	engine := NewEngine(runner, prices, logger.Nop())

	result, err := engine.Run(context.Background(), Config{
		StartDate:     june(2),
		EndDate:       june(6),
		RebalanceDays: 5,
		CostBps:       0,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.TradingDays)
	assert.Equal(t, 1, result.RebalanceCount)
	assert.InDelta(t, math.Pow(1.01, 5), result.FinalEquity, 1e-12)
	assert.InDelta(t, math.Pow(1.01, 5)-1, result.TotalReturn, 1e-12)
	assert.Equal(t, 0.0, result.MaxDrawdown)
	assert.Equal(t, 1.0, result.DailyWinRate)
	require.Len(t, result.EquityCurve, 5)
	assert.Equal(t, june(2), result.EquityCurve[0].Date)
	assert.InDelta(t, 0.01, result.EquityCurve[0].Return, 1e-12)
	assert.Len(t, result.WeightHashes, 1)
}

func TestEngine_CostsChargeOnTurnover(t *testing.T) {
	// Flat prices: the only drag is the entry cost on full turnover.
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"005930": weekdayBars("005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), growth(100, 0, 6)),
	}}
	runner := &scriptedRunner{weights: map[string]map[string]float64{
		"2025-06-02": {"005930": 1.0},
	}}
	engine := NewEngine(runner, prices, logger.Nop())

	result, err := engine.Run(context.Background(), Config{
		StartDate:     june(2),
		EndDate:       june(6),
		RebalanceDays: 5,
		CostBps:       10,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.999, result.FinalEquity, 1e-12)
	assert.InDelta(t, 1.0, result.Turnover, 1e-12)
	assert.InDelta(t, 0.001, result.CostPaid, 1e-12)
}

func TestEngine_CashOutHoldsThroughCrash(t *testing.T) {
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"005930": weekdayBars("005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), growth(100, -0.10, 6)),
	}}
	runner := &scriptedRunner{
		weights: map[string]map[string]float64{"2025-06-02": {}},
		cashOut: map[string]bool{"2025-06-02": true},
	}
	engine := NewEngine(runner, prices, logger.Nop())

	result, err := engine.Run(context.Background(), Config{
		StartDate:     june(2),
		EndDate:       june(6),
		RebalanceDays: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.FinalEquity)
	assert.Equal(t, 5, result.CashOutDays)
	assert.Equal(t, 0.0, result.MaxDrawdown)
}

func TestEngine_FailedRunHoldsBook(t *testing.T) {
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"005930": weekdayBars("005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), growth(100, 0.01, 6)),
	}}
	runner := &scriptedRunner{
		weights: map[string]map[string]float64{
			"2025-06-02": {"005930": 1.0},
			"2025-06-04": {"005930": 1.0},
			"2025-06-05": {"005930": 1.0},
			"2025-06-06": {"005930": 1.0},
		},
		errs: map[string]error{"2025-06-03": errors.New("pipeline blew up")},
	}
	engine := NewEngine(runner, prices, logger.Nop())

	result, err := engine.Run(context.Background(), Config{
		StartDate:     june(2),
		EndDate:       june(6),
		RebalanceDays: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-06-03"}, result.FailedRuns)
	assert.Equal(t, 4, result.RebalanceCount)
	// The book held its allocation through the failed day, so compounding
	// is unbroken.
	assert.InDelta(t, math.Pow(1.01, 5), result.FinalEquity, 1e-12)
}

func TestEngine_SkipsWeekends(t *testing.T) {
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{}}
	runner := &scriptedRunner{weights: map[string]map[string]float64{}}
	engine := NewEngine(runner, prices, logger.Nop())

	// Friday through Monday spans two trading days
	result, err := engine.Run(context.Background(), Config{
		StartDate:     june(6),
		EndDate:       june(9),
		RebalanceDays: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TradingDays)
	require.Len(t, result.EquityCurve, 2)
	assert.Equal(t, june(6), result.EquityCurve[0].Date)
	assert.Equal(t, june(9), result.EquityCurve[1].Date)
}

func TestEngine_PriceFetchErrorFails(t *testing.T) {
	prices := &fakePrices{
		bars: map[string][]contracts.PriceBar{},
		errs: map[string]error{"005930": errors.New("connection refused")},
	}
	runner := &scriptedRunner{weights: map[string]map[string]float64{
		"2025-06-02": {"005930": 1.0},
	}}
	engine := NewEngine(runner, prices, logger.Nop())

	_, err := engine.Run(context.Background(), Config{
		StartDate:     june(2),
		EndDate:       june(6),
		RebalanceDays: 5,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark to market")
}

func TestEngine_ConfigValidation(t *testing.T) {
	engine := NewEngine(&scriptedRunner{}, &fakePrices{}, logger.Nop())

	_, err := engine.Run(context.Background(), Config{StartDate: june(2), EndDate: june(6), RebalanceDays: 0})
	assert.Error(t, err)

	_, err = engine.Run(context.Background(), Config{StartDate: june(6), EndDate: june(2), RebalanceDays: 1})
	assert.Error(t, err)
}

func TestEngine_VerifyDeterminism(t *testing.T) {
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"005930": weekdayBars("005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), growth(100, 0.01, 6)),
	}}
	cfg := Config{StartDate: june(2), EndDate: june(6), RebalanceDays: 2, CostBps: 10}

	stable := &scriptedRunner{weights: map[string]map[string]float64{
		"2025-06-02": {"005930": 1.0},
		"2025-06-04": {"005930": 0.8},
		"2025-06-06": {"005930": 0.9},
	}}
	require.NoError(t, NewEngine(stable, prices, logger.Nop()).VerifyDeterminism(context.Background(), cfg))

	flaky := &scriptedRunner{
		weights: map[string]map[string]float64{
			"2025-06-02": {"005930": 1.0},
			"2025-06-04": {"005930": 0.8},
			"2025-06-06": {"005930": 0.9},
		},
		flaky: true,
	}
	err := NewEngine(flaky, prices, logger.Nop()).VerifyDeterminism(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged")
}

func TestBook_TurnoverAndDrift(t *testing.T) {
	book := NewBook(logger.Nop())
	book.Initialize(1.0)

	book.Rebalance(&contracts.TargetWeights{Weights: map[string]float64{"A": 0.5, "B": 0.5}}, 0)
	assert.InDelta(t, 1.0, book.Stats().Turnover, 1e-12)

	// A +10%, B flat: portfolio +5%, weights drift toward A
	dayReturn := book.MarkToMarket(map[string]float64{"A": 0.10})
	assert.InDelta(t, 0.05, dayReturn, 1e-12)
	assert.InDelta(t, 1.05, book.Equity(), 1e-12)

	// Rebalancing back to 50/50 costs only the drift, at 100bps
	book.Rebalance(&contracts.TargetWeights{Weights: map[string]float64{"A": 0.5, "B": 0.5}}, 100)
	assert.InDelta(t, 1.0+1.0/21, book.Stats().Turnover, 1e-12)
	assert.InDelta(t, 1.05-0.0005, book.Equity(), 1e-12)
}

func TestBook_ExitChargesFullPosition(t *testing.T) {
	book := NewBook(logger.Nop())
	book.Initialize(1.0)
	book.Rebalance(&contracts.TargetWeights{Weights: map[string]float64{"A": 1.0}}, 0)

	book.Rebalance(&contracts.TargetWeights{Weights: map[string]float64{}, CashOut: true}, 10)
	assert.True(t, book.CashOut())
	assert.Empty(t, book.Held())
	assert.InDelta(t, 0.999, book.Equity(), 1e-12)
}

func TestPriceCache_DayReturn(t *testing.T) {
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"005930": weekdayBars("005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), []float64{100, 110, 99}),
	}}
	cache := newPriceCache(prices, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), june(30))
	ctx := context.Background()

	r, ok, err := cache.dayReturn(ctx, "005930", june(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.10, r, 1e-12)

	// First bar has no prior close
	_, ok, err = cache.dayReturn(ctx, "005930", time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)

	// No bar on a holiday
	_, ok, err = cache.dayReturn(ctx, "005930", june(4))
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown instrument
	_, ok, err = cache.dayReturn(ctx, "999999", june(2))
	require.NoError(t, err)
	assert.False(t, ok)
}
