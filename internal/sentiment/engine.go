package sentiment

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Engine computes the per-instrument sentiment composite
// ⭐ SSOT: 감성 복합 점수는 여기서만
//
// Sub-signals: buzz (article volume z-score), surprise (current vs baseline
// mean, baseline strictly before the current window), relative
// (cross-sectional percentile), event (keyword salience with a priority
// window). The deep-analysis call is optional and fail-open: any failure is
// recorded and the composite ships on the four baseline sub-signals.
type Engine struct {
	cfg    strategyconfig.Sentiment
	deep   contracts.DeepAnalyzer
	logger *logger.Logger
}

// NewEngine creates a new sentiment engine
func NewEngine(cfg strategyconfig.Sentiment, deep contracts.DeepAnalyzer, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		deep:   deep,
		logger: log,
	}
}

// Stats aggregates engine-level degradation counters for diagnostics
type Stats struct {
	Collapsed    int // near-duplicate items removed
	DeepCalls    int
	DeepFailures int
}

// degraded-note codes recorded on a snapshot
const (
	noteSurpriseBaselineEmpty = "surprise_baseline_empty"
	noteBuzzBaselineEmpty     = "buzz_baseline_empty"
)

// pending carries one instrument between the two passes
type pending struct {
	code     string
	snapshot *contracts.SentimentSnapshot
	current  []contracts.NewsItem
	mean     float64 // current-window lexicon mean, drives the relative rank
	delta    float64 // surprise delta before [0,1] mapping
	events   []Event
}

// BuildSnapshots computes sentiment snapshots for every instrument with
// current-window news. Instruments without such news get no snapshot; the
// orchestrator records that substitution explicitly (absence of news is
// observable state, never a silent technical-only fallback).
//
// Items dated at or after the decision date are discarded even when the
// caller already filtered them.
func (e *Engine) BuildSnapshots(ctx context.Context, newsByCode map[string][]contracts.NewsItem, decisionDate time.Time) (map[string]*contracts.SentimentSnapshot, Stats) {
	var stats Stats

	codes := make([]string, 0, len(newsByCode))
	for code := range newsByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	currentStart := decisionDate.AddDate(0, 0, -e.cfg.CurrentWindowDays)

	// Pass 1: per-instrument windows and sub-signals
	pendings := make([]*pending, 0, len(codes))
	for _, code := range codes {
		items := truncateItems(newsByCode[code], decisionDate)
		kept, collapsed := CollapseDuplicates(items, e.cfg.DedupThreshold)
		stats.Collapsed += collapsed

		current := itemsInWindow(kept, currentStart, decisionDate)
		if len(current) == 0 {
			continue
		}

		p := &pending{
			code:    code,
			current: current,
			events:  DetectEvents(current),
			snapshot: &contracts.SentimentSnapshot{
				Code:         code,
				DecisionDate: decisionDate,
				ArticleCount: len(current),
				Collapsed:    collapsed,
			},
		}

		p.mean = meanScore(current)
		e.scoreSurprise(p, kept, currentStart)
		e.scoreBuzz(p, kept, currentStart)

		eventSig, active, category := EventSignal(p.events, decisionDate,
			time.Duration(e.cfg.EventPriorityHours)*time.Hour)
		p.snapshot.Event = eventSig
		p.snapshot.EventActive = active
		p.snapshot.EventCategory = category

		pendings = append(pendings, p)
	}

	// Pass 2: cross-sectional percentile rank (ties by code, ascending)
	rankRelative(pendings)

	// Pass 3: combine, event dominance, optional deep enrichment
	snapshots := make(map[string]*contracts.SentimentSnapshot, len(pendings))
	for _, p := range pendings {
		s := p.snapshot
		s.Composite = e.combine(s)

		if e.shouldDeepAnalyze(p) {
			e.applyDeep(ctx, p, &stats)
		}

		e.logger.WithFields(map[string]interface{}{
			"code":      p.code,
			"articles":  s.ArticleCount,
			"collapsed": s.Collapsed,
			"buzz":      s.Buzz,
			"surprise":  s.Surprise,
			"relative":  s.Relative,
			"event":     s.Event,
			"composite": s.Composite,
			"deep":      s.DeepApplied,
		}).Debug("Calculated sentiment composite")

		snapshots[p.code] = s
	}

	return snapshots, stats
}

// scoreSurprise computes current-window mean minus baseline-window mean.
// The baseline window ends exactly where the current window starts; it can
// never include current-window items.
func (e *Engine) scoreSurprise(p *pending, kept []contracts.NewsItem, currentStart time.Time) {
	baselineStart := currentStart.AddDate(0, 0, -e.cfg.BaselineWindowDays)
	baseline := itemsInWindow(kept, baselineStart, currentStart)

	if len(baseline) == 0 {
		p.snapshot.Surprise = 0.5
		p.snapshot.Degraded = append(p.snapshot.Degraded, noteSurpriseBaselineEmpty)
		return
	}

	p.delta = p.mean - meanScore(baseline)
	p.snapshot.Surprise = clamp01(0.5 + p.delta/2)
}

// scoreBuzz computes a z-score of current daily article volume against the
// trailing baseline's daily counts, squashed to [0,1] by a logistic.
func (e *Engine) scoreBuzz(p *pending, kept []contracts.NewsItem, currentStart time.Time) {
	buzzStart := currentStart.AddDate(0, 0, -e.cfg.BuzzBaselineDays)
	baseline := itemsInWindow(kept, buzzStart, currentStart)

	if len(baseline) == 0 {
		p.snapshot.Buzz = 0.5
		p.snapshot.Degraded = append(p.snapshot.Degraded, noteBuzzBaselineEmpty)
		return
	}

	counts := dailyCounts(baseline, buzzStart, e.cfg.BuzzBaselineDays)
	mean, std := meanStd(counts)
	if std < 0.5 {
		std = 0.5 // flat baselines still produce a bounded z-score
	}

	currentPerDay := float64(len(p.current)) / float64(e.cfg.CurrentWindowDays)
	z := (currentPerDay - mean) / std
	p.snapshot.Buzz = 1 / (1 + math.Exp(-z))
}

// rankRelative assigns the cross-sectional percentile of each instrument's
// current-window mean. A single instrument ranks neutral.
func rankRelative(pendings []*pending) {
	if len(pendings) == 0 {
		return
	}
	if len(pendings) == 1 {
		pendings[0].snapshot.Relative = 0.5
		return
	}

	order := make([]*pending, len(pendings))
	copy(order, pendings)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].mean != order[j].mean {
			return order[i].mean < order[j].mean
		}
		return order[i].code < order[j].code
	})

	n := float64(len(order) - 1)
	for idx, p := range order {
		p.snapshot.Relative = float64(idx) / n
	}
}

// combine folds the four sub-signals into the composite. While an event is
// inside its priority window it dominates the normal weighted combine at the
// configured priority weight.
func (e *Engine) combine(s *contracts.SentimentSnapshot) float64 {
	w := e.cfg.Weights
	base := (w.Buzz*s.Buzz + w.Surprise*s.Surprise + w.Relative*s.Relative + w.Event*s.Event) / w.Sum()

	if s.EventActive {
		return clamp01((1-e.cfg.EventPriorityWt)*base + e.cfg.EventPriorityWt*s.Event)
	}
	return clamp01(base)
}

// shouldDeepAnalyze triggers on an active event or a large surprise delta
func (e *Engine) shouldDeepAnalyze(p *pending) bool {
	if !e.cfg.Deep.Enable || e.deep == nil || !e.deep.Enabled() {
		return false
	}
	return p.snapshot.EventActive || math.Abs(p.delta) >= e.cfg.SurpriseTrigger
}

// applyDeep calls the analyzer on the top-K priority articles. Successful
// results blend into the composite and contribute entity mentions; every
// failure is logged and counted, and the composite already computed stands.
func (e *Engine) applyDeep(ctx context.Context, p *pending, stats *Stats) {
	articles := priorityArticles(p.current, p.events, e.cfg.Deep.TopK)

	var sum float64
	var successes int
	var category string
	mentionSet := make(map[contracts.EntityMention]struct{})

	for _, item := range articles {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Deep.Timeout())
		result, err := e.deep.Analyze(callCtx, contracts.DeepRequest{
			ArticleID: item.ID,
			Code:      p.code,
			Headline:  item.Headline,
			Body:      item.Body,
		})
		cancel()

		stats.DeepCalls++
		if err != nil {
			stats.DeepFailures++
			e.logger.WithFields(map[string]interface{}{
				"code":  p.code,
				"item":  item.ID,
				"error": err.Error(),
			}).Warn("Deep analysis failed, continuing with baseline sub-signals")
			continue
		}

		successes++
		sum += result.Sentiment
		if category == "" {
			category = result.Category
		}
		for _, name := range result.Upstream {
			mentionSet[contracts.EntityMention{Name: name, Kind: contracts.RelationSupplier}] = struct{}{}
		}
		for _, name := range result.Downstream {
			mentionSet[contracts.EntityMention{Name: name, Kind: contracts.RelationCustomer}] = struct{}{}
		}
	}

	s := p.snapshot
	if successes == 0 {
		s.Degraded = append(s.Degraded, contracts.ReasonDeepUnavailable)
		return
	}

	deep01 := clamp01((sum/float64(successes) + 1) / 2)
	s.Composite = clamp01((1-e.cfg.Deep.Weight)*s.Composite + e.cfg.Deep.Weight*deep01)
	s.DeepApplied = true
	if s.EventCategory == "" {
		s.EventCategory = category
	}

	s.Mentions = make([]contracts.EntityMention, 0, len(mentionSet))
	for m := range mentionSet {
		s.Mentions = append(s.Mentions, m)
	}
	sort.Slice(s.Mentions, func(i, j int) bool {
		if s.Mentions[i].Name != s.Mentions[j].Name {
			return s.Mentions[i].Name < s.Mentions[j].Name
		}
		return s.Mentions[i].Kind < s.Mentions[j].Kind
	})
}

// priorityArticles ranks current-window items for deep analysis: event
// articles first, then by lexicon magnitude, recency, and ID.
func priorityArticles(current []contracts.NewsItem, events []Event, topK int) []contracts.NewsItem {
	eventIDs := make(map[string]struct{}, len(events))
	for _, ev := range events {
		eventIDs[ev.ItemID] = struct{}{}
	}

	ranked := make([]contracts.NewsItem, len(current))
	copy(ranked, current)
	sort.SliceStable(ranked, func(i, j int) bool {
		_, ei := eventIDs[ranked[i].ID]
		_, ej := eventIDs[ranked[j].ID]
		if ei != ej {
			return ei
		}
		ai := math.Abs(ScoreText(ranked[i].Headline + " " + ranked[i].Body))
		aj := math.Abs(ScoreText(ranked[j].Headline + " " + ranked[j].Body))
		if ai != aj {
			return ai > aj
		}
		if !ranked[i].Timestamp.Equal(ranked[j].Timestamp) {
			return ranked[i].Timestamp.After(ranked[j].Timestamp)
		}
		return ranked[i].ID < ranked[j].ID
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// truncateItems drops items dated at or after the decision date
func truncateItems(items []contracts.NewsItem, decisionDate time.Time) []contracts.NewsItem {
	out := make([]contracts.NewsItem, 0, len(items))
	for _, item := range items {
		if item.Timestamp.Before(decisionDate) {
			out = append(out, item)
		}
	}
	return out
}

// itemsInWindow selects items with from ≤ timestamp < to
func itemsInWindow(items []contracts.NewsItem, from, to time.Time) []contracts.NewsItem {
	out := make([]contracts.NewsItem, 0, len(items))
	for _, item := range items {
		if !item.Timestamp.Before(from) && item.Timestamp.Before(to) {
			out = append(out, item)
		}
	}
	return out
}

func meanScore(items []contracts.NewsItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += ScoreText(item.Headline + " " + item.Body)
	}
	return sum / float64(len(items))
}

// dailyCounts buckets items into calendar-day counts starting at from
func dailyCounts(items []contracts.NewsItem, from time.Time, days int) []float64 {
	counts := make([]float64, days)
	for _, item := range items {
		day := int(item.Timestamp.Sub(from).Hours() / 24)
		if day >= 0 && day < days {
			counts[day]++
		}
	}
	return counts
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}
