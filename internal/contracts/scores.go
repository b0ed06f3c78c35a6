package contracts

import "time"

// ScoreStatus distinguishes how an instrument's score was produced.
// Absence of an input is observable state, never a silent substitution.
type ScoreStatus string

const (
	StatusOK       ScoreStatus = "ok"       // computed normally
	StatusDegraded ScoreStatus = "degraded" // computed with degraded inputs
	StatusSkipped  ScoreStatus = "skipped"  // not computed
)

// Degradation reason codes used in CompositeScore.Reasons and logs
const (
	ReasonNoNews          = "no_news"
	ReasonThinHistory     = "thin_history"
	ReasonNoPriceHistory  = "no_price_history"
	ReasonDeepUnavailable = "deep_analysis_unavailable"
	ReasonDefaultRisk     = "default_risk_proxy"
)

// CompositeScore is the blended per-instrument attractiveness for one date
// ⭐ SSOT: S2/S3/S4 → S5/S6 점수 전달
// 불변식: Sentiment가 있으면 Blended = (1-w)·Technical + w·Sentiment,
// 없으면 Blended = Technical (치환 기록 필수)
type CompositeScore struct {
	Code         string      `json:"code"`
	DecisionDate time.Time   `json:"decision_date"`
	Technical    float64     `json:"technical"` // [0,1]
	Sentiment    *float64    `json:"sentiment,omitempty"`
	Blended      float64     `json:"blended"`
	Status       ScoreStatus `json:"status"`
	Reasons      []string    `json:"reasons,omitempty"`
}

// HasSentiment reports whether a sentiment component participated in the blend
func (c *CompositeScore) HasSentiment() bool {
	return c.Sentiment != nil
}

// Blend combines technical and optional sentiment with the configured
// sentiment weight, enforcing the CompositeScore invariant in one place.
func Blend(technical float64, sentiment *float64, weight float64) float64 {
	if sentiment == nil {
		return technical
	}
	return (1-weight)*technical + weight*(*sentiment)
}

// TechnicalDetails carries the per-category breakdown behind a technical score
type TechnicalDetails struct {
	Trend      float64 `json:"trend"`      // [0,1]
	Momentum   float64 `json:"momentum"`   // [0,1]
	Volume     float64 `json:"volume"`     // [0,1]
	Volatility float64 `json:"volatility"` // [0,1]
	Available  int     `json:"available"`  // 정규화에 성공한 지표 수
	Degraded   bool    `json:"degraded"`
	Reason     string  `json:"reason,omitempty"`
}

// PropagationDetails records how one instrument's direct sentiment was
// enriched by its graph neighborhood. When EdgesUsed is zero, Enriched
// equals Direct exactly and Propagated is meaningless.
type PropagationDetails struct {
	Direct         float64 `json:"direct"`
	Propagated     float64 `json:"propagated"`
	Enriched       float64 `json:"enriched"`
	EdgesUsed      int     `json:"edges_used"`
	StaticEdges    int     `json:"static_edges"`
	CandidateEdges int     `json:"candidate_edges"`
}

// SentimentSnapshot carries a per-instrument composite sentiment plus the
// sub-signal breakdown, as produced by the sentiment engine and consumed by
// the propagator.
type SentimentSnapshot struct {
	Code          string          `json:"code"`
	DecisionDate  time.Time       `json:"decision_date"`
	Composite     float64         `json:"composite"` // [0,1]
	Buzz          float64         `json:"buzz"`
	Surprise      float64         `json:"surprise"`
	Relative      float64         `json:"relative"`
	Event         float64         `json:"event"`
	EventActive   bool            `json:"event_active"`
	EventCategory string          `json:"event_category,omitempty"`
	ArticleCount  int             `json:"article_count"`
	Collapsed     int             `json:"collapsed"` // near-duplicates removed
	DeepApplied   bool            `json:"deep_applied"`
	Mentions      []EntityMention `json:"mentions,omitempty"`
	Degraded      []string        `json:"degraded,omitempty"`
}
