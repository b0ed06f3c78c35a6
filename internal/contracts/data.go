package contracts

import "time"

// PriceBar represents one daily OHLCV bar for an instrument
// ⭐ SSOT: 가격 데이터 교환 타입은 여기서만
type PriceBar struct {
	Code   string    `json:"code"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// TruncateBars returns the bars strictly before the cutoff date.
// Every consumer re-truncates even when the provider honored the requested
// range; look-ahead must be structurally impossible.
func TruncateBars(bars []PriceBar, cutoff time.Time) []PriceBar {
	n := len(bars)
	for n > 0 && !bars[n-1].Date.Before(cutoff) {
		n--
	}
	return bars[:n]
}

// Closes extracts the close series from bars, preserving order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// DailyReturns computes simple daily returns from a close series.
// Entry i is the return from close[i] to close[i+1]; length is len-1.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// NewsItem represents a single news article tied to an instrument
type NewsItem struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
}

// Instrument is a tradable identity with display name and known aliases.
// Aliases feed candidate-edge resolution (entity name → code).
type Instrument struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Sector  string   `json:"sector,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}
