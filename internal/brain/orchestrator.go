package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/policy"
	"github.com/wonny/argus/backend/internal/portfolio"
	"github.com/wonny/argus/backend/internal/propagation"
	"github.com/wonny/argus/backend/internal/regime"
	"github.com/wonny/argus/backend/internal/relgraph"
	"github.com/wonny/argus/backend/internal/sentiment"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/internal/technical"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/metrics"
)

// Orchestrator coordinates the six-stage decision pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
// S1 Regime → S2 Technical → S3 Sentiment → S4 Propagation → S5 Gate →
// S6 Portfolio. 계산 경로는 모드와 무관하게 동일하고, live 모드만 저장
// 부수효과를 수행한다. 결정일 당일 데이터는 어느 단계에서도 보이지 않는다.
type Orchestrator struct {
	strategy *strategyconfig.Config

	// Stage components
	classifier  *regime.Classifier
	scorer      *technical.Scorer
	engine      *sentiment.Engine
	propagator  *propagation.Propagator
	gate        *policy.Gate
	constructor *portfolio.Constructor

	// Data providers
	prices      contracts.PriceProvider
	news        contracts.NewsProvider
	instruments contracts.InstrumentProvider

	// Persistence, live 모드에서만 사용. nil이면 건너뜀.
	runRepo     *Repository
	weightsRepo *portfolio.Repository
	graphRepo   *relgraph.Repository

	metrics *metrics.Recorder
	logger  *logger.Logger
}

// RunConfig holds configuration for one pipeline run
type RunConfig struct {
	DecisionDate time.Time
	RunID        string
	Mode         contracts.Mode
}

// RunResult holds the complete output of one pipeline run
type RunResult struct {
	RunID           string
	DecisionDate    time.Time
	Mode            contracts.Mode
	Success         bool
	Error           error
	CompletedStages []string
	Regime          *contracts.RegimeState
	Scores          []contracts.CompositeScore
	Snapshots       map[string]*contracts.SentimentSnapshot
	Propagation     map[string]contracts.PropagationDetails
	Weights         *contracts.TargetWeights
	WeightsHash     string
	Selections      []portfolio.Selection
	Diagnostics     contracts.Diagnostics
	Duration        time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	strategy *strategyconfig.Config,
	classifier *regime.Classifier,
	scorer *technical.Scorer,
	engine *sentiment.Engine,
	propagator *propagation.Propagator,
	gate *policy.Gate,
	constructor *portfolio.Constructor,
	prices contracts.PriceProvider,
	news contracts.NewsProvider,
	instruments contracts.InstrumentProvider,
	runRepo *Repository,
	weightsRepo *portfolio.Repository,
	graphRepo *relgraph.Repository,
	recorder *metrics.Recorder,
	logger *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		strategy:    strategy,
		classifier:  classifier,
		scorer:      scorer,
		engine:      engine,
		propagator:  propagator,
		gate:        gate,
		constructor: constructor,
		prices:      prices,
		news:        news,
		instruments: instruments,
		runRepo:     runRepo,
		weightsRepo: weightsRepo,
		graphRepo:   graphRepo,
		metrics:     recorder,
		logger:      logger,
	}
}

// Run executes the complete pipeline for one decision date
// S1 → S2 → S3 → S4 → S5 → S6
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	if config.RunID == "" {
		config.RunID = GenerateRunID()
	}
	if config.Mode == "" {
		config.Mode = contracts.ModeSimulation
	}
	// 결정일은 UTC 자정으로 정규화. 시각이 남아 있으면 당일 자정 바가
	// strictly-before 컷오프를 통과해 버린다.
	date := normalizeDate(config.DecisionDate)

	result := &RunResult{
		RunID:           config.RunID,
		DecisionDate:    date,
		Mode:            config.Mode,
		Success:         false,
		CompletedStages: make([]string, 0),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id": config.RunID,
		"date":   date.Format("2006-01-02"),
		"mode":   string(config.Mode),
	}).Info("Starting pipeline run")

	// Universe
	universe, codes, err := o.universe(ctx)
	if err != nil {
		return o.fail(result, fmt.Errorf("universe: %w", err))
	}
	result.Diagnostics.Instruments = len(codes)

	// S1: Regime Classification
	state, trendBearish, trendOK, err := o.runRegime(ctx, date)
	if err != nil {
		return o.fail(result, fmt.Errorf("S1 failed: %w", err))
	}
	result.Regime = state
	result.CompletedStages = append(result.CompletedStages, "S1:Regime")

	// S2: Technical Scoring
	techScores, techDetails, barsByCode := o.runTechnical(ctx, date, codes, state, &result.Diagnostics)
	result.CompletedStages = append(result.CompletedStages, "S2:Technical")

	// S3: Sentiment Composite
	snapshots, stats := o.runSentiment(ctx, date, codes)
	result.Snapshots = snapshots
	result.Diagnostics.CollapsedNews = stats.Collapsed
	result.Diagnostics.DeepFailures = stats.DeepFailures
	result.CompletedStages = append(result.CompletedStages, "S3:Sentiment")

	// S4: Graph Propagation
	propDetails, err := o.runPropagation(ctx, config, date, universe, codes, snapshots, &result.Diagnostics)
	if err != nil {
		return o.fail(result, fmt.Errorf("S4 failed: %w", err))
	}
	result.Propagation = propDetails
	result.CompletedStages = append(result.CompletedStages, "S4:Propagation")

	// Blend technical and enriched sentiment into composite scores
	scores, blended := o.assembleScores(date, codes, techScores, techDetails, snapshots, propDetails, &result.Diagnostics)
	result.Scores = scores
	result.Diagnostics.Computed = len(blended)

	// S5: Policy Gate
	gateResult := o.runGate(blended, state, trendBearish, trendOK, &result.Diagnostics)
	result.CompletedStages = append(result.CompletedStages, "S5:Gate")

	// S6: Portfolio Construction
	weights, selections, hash, err := o.runPortfolio(ctx, config, date, gateResult, barsByCode, &result.Diagnostics)
	if err != nil {
		return o.fail(result, fmt.Errorf("S6 failed: %w", err))
	}
	result.Weights = weights
	result.Selections = selections
	result.WeightsHash = hash
	result.CompletedStages = append(result.CompletedStages, "S6:Portfolio")

	result.Success = true
	result.Duration = time.Since(startTime)

	if config.Mode == contracts.ModeLive && o.runRepo != nil {
		if err := o.runRepo.SaveRun(ctx, result); err != nil {
			result.Success = false
			return o.fail(result, fmt.Errorf("save run: %w", err))
		}
	}

	o.metrics.RecordRun(string(config.Mode), "ok")
	o.logger.WithFields(map[string]interface{}{
		"run_id":   config.RunID,
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
		"regime":   string(state.Label),
		"cash_out": weights.CashOut,
		"hash":     hash,
	}).Info("Pipeline run completed successfully")

	return result, nil
}

func (o *Orchestrator) fail(result *RunResult, err error) (*RunResult, error) {
	result.Error = err
	o.metrics.RecordRun(string(result.Mode), "error")
	o.logger.WithError(err).WithField("run_id", result.RunID).Error("Pipeline run failed")
	return result, err
}

// universe resolves the instrument list for this run. An explicitly
// configured list restricts the stored universe; the benchmark never
// scores itself.
func (o *Orchestrator) universe(ctx context.Context) ([]contracts.Instrument, []string, error) {
	all, err := o.instruments.ListInstruments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list instruments: %w", err)
	}

	var allowed map[string]bool
	if len(o.strategy.Universe.Instruments) > 0 {
		allowed = make(map[string]bool, len(o.strategy.Universe.Instruments))
		for _, code := range o.strategy.Universe.Instruments {
			allowed[code] = true
		}
	}

	kept := make([]contracts.Instrument, 0, len(all))
	codes := make([]string, 0, len(all))
	for _, inst := range all {
		if inst.Code == o.strategy.Universe.Benchmark {
			continue
		}
		if allowed != nil && !allowed[inst.Code] {
			continue
		}
		kept = append(kept, inst)
		codes = append(codes, inst.Code)
	}
	if len(codes) == 0 {
		return nil, nil, fmt.Errorf("empty instrument universe")
	}
	return kept, codes, nil
}

// runRegime executes S1: benchmark regime classification plus the
// independent trend signal the gate uses for dual confirmation.
func (o *Orchestrator) runRegime(ctx context.Context, date time.Time) (*contracts.RegimeState, bool, bool, error) {
	o.logger.Info("Running S1: Regime Classification")
	timer := o.metrics.StartStage(contracts.StageRegime.String())
	defer timer.Stop()

	from := date.AddDate(0, 0, -o.strategy.Regime.BenchmarkLookback)
	bars, err := o.prices.GetPriceHistory(ctx, o.strategy.Universe.Benchmark, from, date.AddDate(0, 0, -1))
	if err != nil {
		return nil, false, false, fmt.Errorf("benchmark history: %w", err)
	}

	state, err := o.classifier.Classify(ctx, bars, date)
	if err != nil {
		return nil, false, false, fmt.Errorf("classify: %w", err)
	}
	trendBearish, trendOK := regime.TrendSignal(bars, date, o.strategy.Regime.FallbackMAWindow)

	o.metrics.SetRegime(string(state.Label), contracts.AllRegimeLabels())
	o.logger.WithFields(map[string]interface{}{
		"label":         string(state.Label),
		"confidence":    state.Confidence,
		"source":        string(state.Source),
		"trend_bearish": trendBearish,
		"trend_ok":      trendOK,
	}).Info("S1 completed")

	return state, trendBearish, trendOK, nil
}

// runTechnical executes S2: per-instrument technical scoring.
// Fetch failures degrade the instrument to a neutral score, never the run.
func (o *Orchestrator) runTechnical(ctx context.Context, date time.Time, codes []string, state *contracts.RegimeState, diag *contracts.Diagnostics) (map[string]float64, map[string]contracts.TechnicalDetails, map[string][]contracts.PriceBar) {
	o.logger.Info("Running S2: Technical Scoring")
	timer := o.metrics.StartStage(contracts.StageTechnical.String())
	defer timer.Stop()

	from := date.AddDate(0, 0, -o.priceLookbackDays())
	scores := make(map[string]float64, len(codes))
	details := make(map[string]contracts.TechnicalDetails, len(codes))
	barsByCode := make(map[string][]contracts.PriceBar, len(codes))
	degraded := 0

	for _, code := range codes {
		bars, err := o.prices.GetPriceHistory(ctx, code, from, date.AddDate(0, 0, -1))
		if err != nil {
			o.logger.WithError(err).WithField("code", code).Warn("Price history fetch failed")
			bars = nil
		}
		bars = contracts.TruncateBars(bars, date)
		barsByCode[code] = bars

		score, d, err := o.scorer.Score(ctx, code, bars, state)
		if err != nil {
			o.logger.WithError(err).WithField("code", code).Warn("Technical scoring failed")
			score, d = 0.5, contracts.TechnicalDetails{Degraded: true, Reason: contracts.ReasonNoPriceHistory}
		}
		scores[code] = score
		details[code] = d

		status := contracts.StatusOK
		if d.Degraded {
			status = contracts.StatusDegraded
			diag.AddTrace(code, contracts.StageTechnical, contracts.StatusDegraded, d.Reason)
			degraded++
		}
		o.metrics.RecordInstrument(contracts.StageTechnical.String(), string(status))
	}

	o.logger.WithFields(map[string]interface{}{
		"instruments": len(codes),
		"degraded":    degraded,
	}).Info("S2 completed")

	return scores, details, barsByCode
}

// runSentiment executes S3: news collection and composite sentiment.
// An instrument without current-window news simply gets no snapshot here;
// the blend step records that substitution per instrument.
func (o *Orchestrator) runSentiment(ctx context.Context, date time.Time, codes []string) (map[string]*contracts.SentimentSnapshot, sentiment.Stats) {
	o.logger.Info("Running S3: Sentiment Composite")
	timer := o.metrics.StartStage(contracts.StageSentiment.String())
	defer timer.Stop()

	from := o.newsWindowStart(date)
	newsByCode := make(map[string][]contracts.NewsItem, len(codes))
	for _, code := range codes {
		items, err := o.news.GetNews(ctx, code, from, date)
		if err != nil {
			o.logger.WithError(err).WithField("code", code).Warn("News fetch failed")
			continue
		}
		if len(items) > 0 {
			newsByCode[code] = items
		}
	}

	snapshots, stats := o.engine.BuildSnapshots(ctx, newsByCode, date)

	o.logger.WithFields(map[string]interface{}{
		"with_news":     len(snapshots),
		"collapsed":     stats.Collapsed,
		"deep_calls":    stats.DeepCalls,
		"deep_failures": stats.DeepFailures,
	}).Info("S3 completed")

	return snapshots, stats
}

// runPropagation executes S4: candidate-edge resolution and single-hop
// sentiment enrichment over the static graph plus the per-date overlay.
func (o *Orchestrator) runPropagation(ctx context.Context, config RunConfig, date time.Time, universe []contracts.Instrument, codes []string, snapshots map[string]*contracts.SentimentSnapshot, diag *contracts.Diagnostics) (map[string]contracts.PropagationDetails, error) {
	o.logger.Info("Running S4: Graph Propagation")
	timer := o.metrics.StartStage(contracts.StagePropagation.String())
	defer timer.Stop()

	resolver := relgraph.NewResolver(universe, o.strategy.Propagation.Aliases)
	mentions := make(map[string][]contracts.EntityMention)
	for code, snap := range snapshots {
		if len(snap.Mentions) > 0 {
			mentions[code] = snap.Mentions
		}
	}
	overlay, unresolved := resolver.BuildOverlay(mentions, date, o.strategy.Propagation.CandidateWeight)
	diag.DroppedMentions = unresolved
	diag.CandidateEdges = overlay.Size()

	direct := make(map[string]float64, len(snapshots))
	for code, snap := range snapshots {
		direct[code] = snap.Composite
	}
	details := o.propagator.Enrich(codes, direct, overlay)

	// Candidates are per-date rows; live 모드는 비어 있어도 저장해서
	// 이전 실행의 잔여 엣지를 지운다.
	if config.Mode == contracts.ModeLive && o.graphRepo != nil {
		if err := o.graphRepo.SaveCandidates(ctx, date, overlay.All()); err != nil {
			return nil, fmt.Errorf("save candidate edges: %w", err)
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"candidate_edges":  overlay.Size(),
		"dropped_mentions": unresolved,
	}).Info("S4 completed")

	return details, nil
}

// assembleScores blends technical and enriched sentiment per instrument.
//
// Sentiment participation follows three tiers: an instrument with its own
// news always blends; a quiet instrument whose neighborhood contributed
// edges blends the neighbor-derived value and is marked degraded; a quiet
// instrument with no edges blends nothing (Blended = Technical). Under
// require_news, quiet instruments are excluded from ranking entirely.
func (o *Orchestrator) assembleScores(date time.Time, codes []string, techScores map[string]float64, techDetails map[string]contracts.TechnicalDetails, snapshots map[string]*contracts.SentimentSnapshot, propDetails map[string]contracts.PropagationDetails, diag *contracts.Diagnostics) ([]contracts.CompositeScore, map[string]float64) {
	scores := make([]contracts.CompositeScore, 0, len(codes))
	blended := make(map[string]float64, len(codes))

	for _, code := range codes {
		cs := contracts.CompositeScore{
			Code:         code,
			DecisionDate: date,
			Technical:    techScores[code],
			Status:       contracts.StatusOK,
		}
		if d := techDetails[code]; d.Degraded {
			cs.Status = contracts.StatusDegraded
			cs.Reasons = append(cs.Reasons, d.Reason)
		}

		pd := propDetails[code]
		_, hasNews := snapshots[code]
		switch {
		case hasNews:
			v := pd.Enriched
			cs.Sentiment = &v
			o.metrics.RecordInstrument(contracts.StageSentiment.String(), string(contracts.StatusOK))
		case o.strategy.Sentiment.RequireNews:
			cs.Status = contracts.StatusSkipped
			cs.Reasons = append(cs.Reasons, contracts.ReasonNoNews)
			cs.Blended = cs.Technical
			diag.AddTrace(code, contracts.StageSentiment, contracts.StatusSkipped, contracts.ReasonNoNews)
			o.metrics.RecordInstrument(contracts.StageSentiment.String(), string(contracts.StatusSkipped))
			scores = append(scores, cs)
			continue
		case pd.EdgesUsed > 0:
			// 자체 뉴스는 없지만 이웃이 기여한 경우: 이웃 유래 감성으로
			// 블렌딩하되 저하로 표시한다.
			v := pd.Enriched
			cs.Sentiment = &v
			cs.Status = contracts.StatusDegraded
			cs.Reasons = append(cs.Reasons, contracts.ReasonNoNews)
			diag.AddTrace(code, contracts.StageSentiment, contracts.StatusDegraded, contracts.ReasonNoNews)
			o.metrics.RecordInstrument(contracts.StageSentiment.String(), string(contracts.StatusDegraded))
		default:
			cs.Status = contracts.StatusDegraded
			cs.Reasons = append(cs.Reasons, contracts.ReasonNoNews)
			diag.AddTrace(code, contracts.StageSentiment, contracts.StatusDegraded, contracts.ReasonNoNews)
			o.metrics.RecordInstrument(contracts.StageSentiment.String(), string(contracts.StatusDegraded))
		}

		cs.Blended = contracts.Blend(cs.Technical, cs.Sentiment, o.strategy.Sentiment.BlendWeight)
		blended[code] = cs.Blended
		scores = append(scores, cs)
	}

	return scores, blended
}

// runGate executes S5: regime-conditional policy gates
func (o *Orchestrator) runGate(blended map[string]float64, state *contracts.RegimeState, trendBearish, trendOK bool, diag *contracts.Diagnostics) policy.Result {
	o.logger.Info("Running S5: Policy Gate")
	timer := o.metrics.StartStage(contracts.StageGate.String())
	defer timer.Stop()

	result := o.gate.Apply(blended, state, trendBearish, trendOK)
	diag.GateRulesApplied = result.RulesApplied

	o.logger.WithFields(map[string]interface{}{
		"rules":    result.RulesApplied,
		"cash_out": result.CashOut,
	}).Info("S5 completed")

	return result
}

// runPortfolio executes S6: selection, inverse-risk weighting, persistence
func (o *Orchestrator) runPortfolio(ctx context.Context, config RunConfig, date time.Time, gateResult policy.Result, barsByCode map[string][]contracts.PriceBar, diag *contracts.Diagnostics) (*contracts.TargetWeights, []portfolio.Selection, string, error) {
	o.logger.Info("Running S6: Portfolio Construction")
	timer := o.metrics.StartStage(contracts.StagePortfolio.String())
	defer timer.Stop()

	weights, selections := o.constructor.Construct(ctx, date, gateResult.Scores, gateResult.CashOut, barsByCode)
	for _, sel := range selections {
		if sel.Degraded {
			diag.AddTrace(sel.Code, contracts.StagePortfolio, contracts.StatusDegraded, contracts.ReasonDefaultRisk)
			o.metrics.RecordInstrument(contracts.StagePortfolio.String(), string(contracts.StatusDegraded))
		}
	}

	hash, err := weights.Hash()
	if err != nil {
		return nil, nil, "", fmt.Errorf("hash target weights: %w", err)
	}

	if config.Mode == contracts.ModeLive && o.weightsRepo != nil {
		if err := o.weightsRepo.SaveWeights(ctx, weights, hash); err != nil {
			return nil, nil, "", fmt.Errorf("save target weights: %w", err)
		}
	}
	o.metrics.SetWeights(weights.Weights, weights.CashOut)

	o.logger.WithFields(map[string]interface{}{
		"positions":    len(weights.Weights),
		"total_weight": weights.TotalWeight(),
		"cash_out":     weights.CashOut,
		"hash":         hash,
	}).Info("S6 completed")

	return weights, selections, hash, nil
}

// priceLookbackDays converts the longest indicator warmup (rolling window
// plus SMA200) from trading days to a calendar fetch window.
func (o *Orchestrator) priceLookbackDays() int {
	return (o.strategy.Technical.RollingWindow + 200) * 3 / 2
}

// newsWindowStart returns the earliest published-at the sentiment engine
// needs: current window plus the longer of the two baselines.
func (o *Orchestrator) newsWindowStart(date time.Time) time.Time {
	hist := o.strategy.Sentiment.BaselineWindowDays
	if o.strategy.Sentiment.BuzzBaselineDays > hist {
		hist = o.strategy.Sentiment.BuzzBaselineDays
	}
	return date.AddDate(0, 0, -(o.strategy.Sentiment.CurrentWindowDays + hist))
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s", time.Now().UTC().Format("20060102_150405"))
}
