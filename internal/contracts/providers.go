package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 외부 인터페이스 정의는 여기서만
// 파이프라인은 구현이 아니라 이 인터페이스에만 의존한다.

// PriceProvider serves ordered, deduplicated daily bars
type PriceProvider interface {
	GetPriceHistory(ctx context.Context, code string, from, to time.Time) ([]PriceBar, error)
}

// NewsProvider serves news items for an instrument within a window
type NewsProvider interface {
	GetNews(ctx context.Context, code string, from, to time.Time) ([]NewsItem, error)
}

// GraphLoader loads the static relationship graph once at process start
type GraphLoader interface {
	LoadGraph(ctx context.Context) ([]RelationshipEdge, error)
}

// InstrumentProvider lists the tradable universe with names and aliases
type InstrumentProvider interface {
	ListInstruments(ctx context.Context) ([]Instrument, error)
}

// DeepRequest is the payload for the optional deep-analysis service.
// ArticleID identifies the article for caching and server-side dedup.
type DeepRequest struct {
	ArticleID string `json:"article_id,omitempty"`
	Code      string `json:"code"`
	Headline  string `json:"headline"`
	Body      string `json:"body"`
}

// DeepResult is a successful deep-analysis response
type DeepResult struct {
	Sentiment  float64  `json:"sentiment"` // [-1, 1]
	Category   string   `json:"category"`
	Upstream   []string `json:"upstream"`   // supplier entity names, unresolved
	Downstream []string `json:"downstream"` // customer entity names, unresolved
	Rationale  string   `json:"rationale,omitempty"`
}

// DeepAnalyzer is the opaque, possibly-failing enrichment service.
// 계약: 실패(타임아웃, 차단, 비정상 응답)는 fail-open. 호출자는 기록 후
// 기본 서브시그널만으로 계속 진행한다. 절대 파이프라인을 막지 않는다.
type DeepAnalyzer interface {
	Analyze(ctx context.Context, req DeepRequest) (*DeepResult, error)
	Enabled() bool
}
