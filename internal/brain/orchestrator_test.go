package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/deepanalysis"
	"github.com/wonny/argus/backend/internal/policy"
	"github.com/wonny/argus/backend/internal/portfolio"
	"github.com/wonny/argus/backend/internal/propagation"
	"github.com/wonny/argus/backend/internal/regime"
	"github.com/wonny/argus/backend/internal/relgraph"
	"github.com/wonny/argus/backend/internal/sentiment"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/internal/technical"
	"github.com/wonny/argus/backend/pkg/logger"
)

var decision = time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)

// fakePrices serves canned bars. ignoreRange simulates a misbehaving
// provider that returns rows outside the requested window.
type fakePrices struct {
	bars        map[string][]contracts.PriceBar
	errs        map[string]error
	ignoreRange bool
}

func (f *fakePrices) GetPriceHistory(_ context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	if f.ignoreRange {
		return f.bars[code], nil
	}
	var out []contracts.PriceBar
	for _, b := range f.bars[code] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeNews struct {
	items       map[string][]contracts.NewsItem
	errs        map[string]error
	ignoreRange bool
}

func (f *fakeNews) GetNews(_ context.Context, code string, from, to time.Time) ([]contracts.NewsItem, error) {
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	if f.ignoreRange {
		return f.items[code], nil
	}
	var out []contracts.NewsItem
	for _, n := range f.items[code] {
		if !n.Timestamp.Before(from) && n.Timestamp.Before(to) {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeInstruments struct {
	list []contracts.Instrument
	err  error
}

func (f *fakeInstruments) ListInstruments(context.Context) ([]contracts.Instrument, error) {
	return f.list, f.err
}

func testStrategy() *strategyconfig.Config {
	cfg := strategyconfig.Default()
	cfg.Universe = strategyconfig.Universe{Benchmark: "KOSPI"}
	cfg.Technical.RollingWindow = 30
	cfg.Regime.MaxIterations = 10
	cfg.Regime.FallbackMAWindow = 20
	cfg.Regime.BenchmarkLookback = 400
	cfg.Portfolio.TopN = 2
	return cfg
}

func newTestOrchestrator(strategy *strategyconfig.Config, prices contracts.PriceProvider, news contracts.NewsProvider, instruments contracts.InstrumentProvider, edges []contracts.RelationshipEdge) *Orchestrator {
	log := logger.Nop()
	graph, _ := relgraph.New(edges)
	return NewOrchestrator(
		strategy,
		regime.NewClassifier(strategy.Regime, regime.NewBaumWelch(strategy.Regime.MaxIterations), log),
		technical.NewScorer(strategy.Technical, log),
		sentiment.NewEngine(strategy.Sentiment, deepanalysis.NewNull(), log),
		propagation.NewPropagator(strategy.Propagation, graph, log),
		policy.NewGate(strategy.Gates, log),
		portfolio.NewConstructor(strategy.Portfolio, log),
		prices, news, instruments,
		nil, nil, nil, // simulation 모드 테스트라 저장소 없음
		nil,
		log,
	)
}

// driftBars builds days bars ending the day before the anchor, drifting at
// the given daily rate with a deterministic wobble so returns have spread.
func driftBars(code string, anchor time.Time, days int, drift float64) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, 0, days)
	price := 100.0
	for i := 0; i < days; i++ {
		move := drift + 0.003*float64(i%5-2) + 0.0004*float64(i%7-3)/3
		price *= 1 + move
		bars = append(bars, contracts.PriceBar{
			Code:   code,
			Date:   anchor.AddDate(0, 0, i-days),
			Open:   price * 0.998,
			High:   price * 1.012,
			Low:    price * 0.985,
			Close:  price,
			Volume: int64(1_000_000 + 10_000*(i%11)),
		})
	}
	return bars
}

func newsItem(id, code string, at time.Time, headline string) contracts.NewsItem {
	return contracts.NewsItem{
		ID:        id,
		Code:      code,
		Timestamp: at,
		Headline:  headline,
		Source:    "wire",
	}
}

// standardFixtures: three instruments plus a benchmark, news for 005930 only
func standardFixtures() (*fakePrices, *fakeNews, *fakeInstruments) {
	prices := &fakePrices{bars: map[string][]contracts.PriceBar{
		"KOSPI":  driftBars("KOSPI", decision, 300, 0.0015),
		"005930": driftBars("005930", decision, 300, 0.002),
		"000660": driftBars("000660", decision, 300, 0.001),
		"035420": driftBars("035420", decision, 300, 0.0005),
	}}
	news := &fakeNews{items: map[string][]contracts.NewsItem{
		"005930": {
			newsItem("n1", "005930", decision.AddDate(0, 0, -1), "실적 컨센서스 상회, 수주 확대"),
			newsItem("n2", "005930", decision.AddDate(0, 0, -2), "신규 공급 계약 체결"),
			newsItem("n3", "005930", decision.AddDate(0, 0, -12), "분기 실적 발표"),
			newsItem("n4", "005930", decision.AddDate(0, 0, -20), "업황 전망 보고서"),
		},
	}}
	instruments := &fakeInstruments{list: []contracts.Instrument{
		{Code: "005930", Name: "알파반도체", Aliases: []string{"Alpha Semi"}},
		{Code: "000660", Name: "베타칩스", Aliases: []string{"Beta Chips"}},
		{Code: "035420", Name: "감마넷"},
		{Code: "KOSPI", Name: "코스피"}, // 벤치마크는 유니버스에서 제외되어야 함
	}}
	return prices, news, instruments
}

func scoreByCode(t *testing.T, scores []contracts.CompositeScore, code string) contracts.CompositeScore {
	t.Helper()
	for _, cs := range scores {
		if cs.Code == code {
			return cs
		}
	}
	t.Fatalf("no composite score for %s", code)
	return contracts.CompositeScore{}
}

func hasTrace(d contracts.Diagnostics, code string, stage contracts.Stage, status contracts.ScoreStatus, reason string) bool {
	for _, tr := range d.Traces {
		if tr.Code == code && tr.Stage == stage && tr.Status == status && tr.Reason == reason {
			return true
		}
	}
	return false
}

func TestRun_EndToEnd(t *testing.T) {
	prices, news, instruments := standardFixtures()
	o := newTestOrchestrator(testStrategy(), prices, news, instruments, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, contracts.ModeSimulation, result.Mode)
	assert.True(t, strings.HasPrefix(result.RunID, "run_"))
	assert.Len(t, result.CompletedStages, 6)
	assert.Equal(t, "S6:Portfolio", result.CompletedStages[5])

	// The benchmark never scores itself
	assert.Equal(t, 3, result.Diagnostics.Instruments)
	assert.NotContains(t, result.Weights.Weights, "KOSPI")

	// Rising benchmark: no cash-out, weights normalized over the top 2
	require.NotNil(t, result.Weights)
	assert.False(t, result.Weights.CashOut)
	assert.Len(t, result.Weights.Weights, 2)
	assert.InDelta(t, 1.0, result.Weights.TotalWeight(), 1e-9)
	assert.NotEmpty(t, result.WeightsHash)

	// Scores come back sorted by code
	require.Len(t, result.Scores, 3)
	assert.Equal(t, "000660", result.Scores[0].Code)
	assert.Equal(t, "005930", result.Scores[1].Code)
	assert.Equal(t, "035420", result.Scores[2].Code)

	// 005930 has news, so its sentiment participated in the blend
	withNews := scoreByCode(t, result.Scores, "005930")
	require.NotNil(t, withNews.Sentiment)
	assert.Equal(t, contracts.StatusOK, withNews.Status)

	// Quiet instruments with no graph edges: Blended == Technical exactly,
	// and the substitution is recorded per instrument
	for _, code := range []string{"000660", "035420"} {
		quiet := scoreByCode(t, result.Scores, code)
		assert.Nil(t, quiet.Sentiment)
		assert.Equal(t, quiet.Technical, quiet.Blended)
		assert.Equal(t, contracts.StatusDegraded, quiet.Status)
		assert.True(t, hasTrace(result.Diagnostics, code, contracts.StageSentiment, contracts.StatusDegraded, contracts.ReasonNoNews))
	}

	assert.Equal(t, 3, result.Diagnostics.Computed)
	require.NotNil(t, result.Regime)
	assert.NotEqual(t, contracts.RegimeUnknown, result.Regime.Label)
}

func TestRun_Deterministic(t *testing.T) {
	run := func() *RunResult {
		prices, news, instruments := standardFixtures()
		o := newTestOrchestrator(testStrategy(), prices, news, instruments, nil)
		result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision, RunID: "run_fixed"})
		require.NoError(t, err)
		return result
	}

	first := run()
	for i := 0; i < 3; i++ {
		again := run()
		require.Equal(t, first.WeightsHash, again.WeightsHash)
		require.Equal(t, first.Weights.Weights, again.Weights.Weights)
		require.Equal(t, first.Scores, again.Scores)
		require.Equal(t, first.Regime, again.Regime)
	}
}

func TestRun_IgnoresSameDayData(t *testing.T) {
	clean, cleanNews, instruments := standardFixtures()
	baseline, err := newTestOrchestrator(testStrategy(), clean, cleanNews, instruments, nil).
		Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)

	// Same fixtures plus a same-day crash bar and catastrophic same-day
	// news, served by providers that ignore the requested range.
	polluted, pollutedNews, _ := standardFixtures()
	polluted.ignoreRange = true
	pollutedNews.ignoreRange = true
	for code := range polluted.bars {
		last := polluted.bars[code][len(polluted.bars[code])-1]
		polluted.bars[code] = append(polluted.bars[code],
			contracts.PriceBar{Code: code, Date: decision, Close: last.Close * 0.5, Volume: last.Volume * 10},
			contracts.PriceBar{Code: code, Date: decision.AddDate(0, 0, 1), Close: last.Close * 0.3, Volume: last.Volume * 10},
		)
	}
	pollutedNews.items["005930"] = append(pollutedNews.items["005930"],
		newsItem("crash", "005930", decision.Add(2*time.Hour), "상장폐지 심사 루머"),
	)

	dirty, err := newTestOrchestrator(testStrategy(), polluted, pollutedNews, instruments, nil).
		Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)

	require.Equal(t, baseline.WeightsHash, dirty.WeightsHash)
	require.Equal(t, baseline.Scores, dirty.Scores)
	require.Equal(t, baseline.Regime, dirty.Regime)
}

func TestRun_RequireNewsSkipsQuietInstruments(t *testing.T) {
	prices, news, instruments := standardFixtures()
	strategy := testStrategy()
	strategy.Sentiment.RequireNews = true
	o := newTestOrchestrator(strategy, prices, news, instruments, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Diagnostics.Computed)
	assert.Equal(t, 2, result.Diagnostics.Skipped)
	for _, code := range []string{"000660", "035420"} {
		skipped := scoreByCode(t, result.Scores, code)
		assert.Equal(t, contracts.StatusSkipped, skipped.Status)
		assert.True(t, hasTrace(result.Diagnostics, code, contracts.StageSentiment, contracts.StatusSkipped, contracts.ReasonNoNews))
	}

	// Only the instrument with news remains rankable
	require.NotNil(t, result.Weights)
	assert.Equal(t, map[string]float64{"005930": 1.0}, result.Weights.Weights)
}

func TestRun_PropagationEnrichesQuietNeighbor(t *testing.T) {
	prices, news, instruments := standardFixtures()
	edges := []contracts.RelationshipEdge{
		{Source: "005930", Target: "000660", Kind: contracts.RelationSupplier, Tier: 1, Weight: 0.8},
	}
	o := newTestOrchestrator(testStrategy(), prices, news, instruments, edges)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)

	// 000660 has no news of its own but a loud supplier: neighbor-derived
	// sentiment participates, marked degraded.
	pd := result.Propagation["000660"]
	require.Equal(t, 1, pd.EdgesUsed)
	enriched := scoreByCode(t, result.Scores, "000660")
	require.NotNil(t, enriched.Sentiment)
	assert.Equal(t, pd.Enriched, *enriched.Sentiment)
	assert.Equal(t, contracts.StatusDegraded, enriched.Status)

	// 035420 stays out of reach of the graph
	assert.Nil(t, scoreByCode(t, result.Scores, "035420").Sentiment)
}

func TestRun_PriceFetchErrorDegradesInstrument(t *testing.T) {
	prices, news, instruments := standardFixtures()
	prices.errs = map[string]error{"000660": errors.New("connection refused")}
	o := newTestOrchestrator(testStrategy(), prices, news, instruments, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)
	require.True(t, result.Success)

	degraded := scoreByCode(t, result.Scores, "000660")
	assert.Equal(t, 0.5, degraded.Technical)
	assert.True(t, hasTrace(result.Diagnostics, "000660", contracts.StageTechnical, contracts.StatusDegraded, contracts.ReasonNoPriceHistory))
	assert.Equal(t, 3, result.Diagnostics.Computed)
}

func TestRun_BearMarketCashesOut(t *testing.T) {
	prices, news, instruments := standardFixtures()
	// Thin, falling benchmark: below min_observations the fallback rule
	// classifies BEAR, and the trend signal confirms.
	prices.bars["KOSPI"] = driftBars("KOSPI", decision, 50, -0.006)
	o := newTestOrchestrator(testStrategy(), prices, news, instruments, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)
	require.True(t, result.Success)

	require.NotNil(t, result.Regime)
	assert.Equal(t, contracts.RegimeBear, result.Regime.Label)
	assert.Equal(t, contracts.RegimeSourceFallback, result.Regime.Source)

	require.NotNil(t, result.Weights)
	assert.True(t, result.Weights.CashOut)
	assert.Empty(t, result.Weights.Weights)
	assert.Contains(t, result.Diagnostics.GateRulesApplied, policy.RuleCashOut)
}

func TestRun_EmptyUniverseFails(t *testing.T) {
	prices, news, _ := standardFixtures()
	o := newTestOrchestrator(testStrategy(), prices, news, &fakeInstruments{}, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Empty(t, result.CompletedStages)
}

func TestRun_MissingBenchmarkHistoryFails(t *testing.T) {
	prices, news, instruments := standardFixtures()
	delete(prices.bars, "KOSPI")
	o := newTestOrchestrator(testStrategy(), prices, news, instruments, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S1 failed")
	assert.Empty(t, result.CompletedStages)
}

func TestRun_ConfiguredUniverseRestricts(t *testing.T) {
	prices, news, instruments := standardFixtures()
	strategy := testStrategy()
	strategy.Universe.Instruments = []string{"005930", "035420"}
	o := newTestOrchestrator(strategy, prices, news, instruments, nil)

	result, err := o.Run(context.Background(), RunConfig{DecisionDate: decision})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Diagnostics.Instruments)
	assert.Len(t, result.Scores, 2)
	assert.NotContains(t, result.Weights.Weights, "000660")
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	noon := time.Date(2025, 6, 13, 12, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC), normalizeDate(noon))
}

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	assert.True(t, strings.HasPrefix(id, "run_"))
	assert.Len(t, id, len("run_20060102_150405"))
}
