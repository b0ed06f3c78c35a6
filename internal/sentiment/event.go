package sentiment

import (
	"sort"
	"strings"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
)

// EventCategory classifies a high-salience news event
type EventCategory string

const (
	EventEarnings   EventCategory = "earnings"   // 실적 발표/서프라이즈
	EventMA         EventCategory = "m&a"        // 인수합병
	EventRegulatory EventCategory = "regulatory" // 규제/제재
	EventGuidance   EventCategory = "guidance"   // 가이던스 변경
	EventLitigation EventCategory = "litigation" // 소송/조사
)

// categoryKeywords maps detection keywords to a category. Keywords are
// matched as substrings of the lowercased headline+body, so Korean
// keywords match with particles attached.
var categoryKeywords = map[EventCategory][]string{
	EventEarnings: {
		"earnings", "quarterly results", "q1 results", "q2 results", "q3 results", "q4 results", "revenue report", "eps",
		"실적 발표", "잠정 실적", "영업이익", "어닝",
	},
	EventMA: {
		"acquisition", "acquire", "merger", "takeover", "buyout", "tender offer",
		"인수", "합병", "공개매수",
	},
	EventRegulatory: {
		"regulator", "antitrust", "export control", "sanction", "tariff", "license revoked", "ban",
		"규제", "제재", "과징금", "관세", "수출 통제",
	},
	EventGuidance: {
		"guidance", "outlook", "forecast raised", "forecast cut", "forecast lowered",
		"가이던스", "전망치",
	},
	EventLitigation: {
		"lawsuit", "litigation", "sues", "sued", "investigation", "probe", "subpoena",
		"소송", "기소", "압수수색", "검찰",
	},
}

// categorySalience is how strongly a category moves the event sub-signal
var categorySalience = map[EventCategory]float64{
	EventEarnings:   1.0,
	EventMA:         0.9,
	EventGuidance:   0.8,
	EventRegulatory: 0.7,
	EventLitigation: 0.7,
}

// Event is a detected high-salience item
type Event struct {
	Category  EventCategory
	Polarity  float64 // [-1, 1], from the lexicon score of the matched item
	Timestamp time.Time
	ItemID    string
}

// DetectEvents scans items for category keywords. Items are examined in
// deterministic order (timestamp, then ID) and each item yields at most one
// event, the first category matched in fixed category order.
func DetectEvents(items []contracts.NewsItem) []Event {
	ordered := make([]contracts.NewsItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	categories := []EventCategory{EventEarnings, EventMA, EventGuidance, EventRegulatory, EventLitigation}

	var events []Event
	for _, item := range ordered {
		text := strings.ToLower(item.Headline + " " + item.Body)
		for _, cat := range categories {
			if !matchesCategory(text, cat) {
				continue
			}
			events = append(events, Event{
				Category:  cat,
				Polarity:  ScoreText(item.Headline + " " + item.Body),
				Timestamp: item.Timestamp,
				ItemID:    item.ID,
			})
			break
		}
	}
	return events
}

func matchesCategory(text string, cat EventCategory) bool {
	for _, kw := range categoryKeywords[cat] {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// EventSignal folds detected events into the [0,1] event sub-signal. The
// most recent event drives the signal and the reported category; active is
// true only while that event sits inside the priority window before the
// decision date, which is when it dominates the composite.
func EventSignal(events []Event, decisionDate time.Time, priorityWindow time.Duration) (signal float64, active bool, category string) {
	signal = 0.5
	windowStart := decisionDate.Add(-priorityWindow)

	for _, ev := range events { // ordered oldest → newest
		if !ev.Timestamp.Before(decisionDate) {
			continue
		}
		category = string(ev.Category)
		signal = clamp01(0.5 + 0.5*categorySalience[ev.Category]*ev.Polarity)
		active = !ev.Timestamp.Before(windowStart)
	}
	return signal, active, category
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
