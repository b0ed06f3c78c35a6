package contracts

// Pipeline stage 정의 (SSOT)
// 모든 로그, 진단 trace, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S1 → S2 → S3 → S4 → S5 → S6
//   Regime  Technical  Sentiment  Propagation  Gate  Portfolio
//
// 레짐이 첫 단계인 이유: 기술적 점수의 레짐 조건부 가중치가
// 같은 결정일의 RegimeState를 참조하기 때문

// Stage represents a pipeline stage
type Stage string

const (
	// StageRegime S1: 시장 레짐 분류
	// 책임: HMM 분류, 폴백 규칙, 신뢰도/소스 태깅
	// 위치: internal/regime/
	StageRegime Stage = "S1_REGIME"

	// StageTechnical S2: 기술적 지표 점수화
	// 책임: 추세/모멘텀/거래량/변동성 카테고리 정규화 및 합성
	// 위치: internal/technical/
	StageTechnical Stage = "S2_TECHNICAL"

	// StageSentiment S3: 뉴스 감성 복합 점수
	// 책임: buzz/surprise/relative/event 서브시그널, 중복 제거, 딥 분석
	// 위치: internal/sentiment/
	StageSentiment Stage = "S3_SENTIMENT"

	// StagePropagation S4: 관계 그래프 감성 전파
	// 책임: 정적 그래프 + 후보 엣지 병합, 티어 감쇠 캐스케이드
	// 위치: internal/propagation/
	StagePropagation Stage = "S4_PROPAGATION"

	// StageGate S5: 정책 게이트
	// 책임: CASH_OUT 이중 확인, SIDEWAYS 스케일링
	// 위치: internal/policy/
	StageGate Stage = "S5_GATE"

	// StagePortfolio S6: 포트폴리오 구성
	// 책임: Top-N 선별, 역변동성 가중, 정규화
	// 위치: internal/portfolio/
	StagePortfolio Stage = "S6_PORTFOLIO"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// AllStages returns all pipeline stages in execution order
func AllStages() []Stage {
	return []Stage{
		StageRegime,
		StageTechnical,
		StageSentiment,
		StagePropagation,
		StageGate,
		StagePortfolio,
	}
}

// Mode selects simulation vs live side effects.
// 계약: 계산 경로는 모드와 무관하게 완전히 동일해야 함 (execution parity)
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeLive       Mode = "live"
)

// InstrumentTrace records how one instrument fared in one run, for
// reconstructability: which stage degraded or skipped it and why.
type InstrumentTrace struct {
	Code   string      `json:"code"`
	Stage  Stage       `json:"stage"`
	Status ScoreStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// Diagnostics aggregates per-run degradation counters.
// 에러가 아니라 관측 가능한 상태: 출력에서 "정상/저하/미계산"을 구분한다.
type Diagnostics struct {
	Instruments      int               `json:"instruments"`
	Computed         int               `json:"computed"`
	Degraded         int               `json:"degraded"`
	Skipped          int               `json:"skipped"`
	CollapsedNews    int               `json:"collapsed_news"`
	DroppedMentions  int               `json:"dropped_mentions"`
	CandidateEdges   int               `json:"candidate_edges"`
	DeepFailures     int               `json:"deep_failures"`
	Traces           []InstrumentTrace `json:"traces,omitempty"`
	GateRulesApplied []string          `json:"gate_rules_applied,omitempty"`
}

// AddTrace appends a trace entry and bumps the matching counter
func (d *Diagnostics) AddTrace(code string, stage Stage, status ScoreStatus, reason string) {
	d.Traces = append(d.Traces, InstrumentTrace{
		Code:   code,
		Stage:  stage,
		Status: status,
		Reason: reason,
	})
	switch status {
	case StatusDegraded:
		d.Degraded++
	case StatusSkipped:
		d.Skipped++
	}
}
