package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
)

// FetchDailyBars fetches daily OHLCV bars for one symbol.
// 종목 코드(005930)와 지수 심볼(KOSPI) 모두 같은 엔드포인트를 쓴다.
// 벤치마크 이력도 이 함수로 수집한다.
// ⭐ SSOT: Naver Finance 가격 조회는 이 함수에서만
func (c *Client) FetchDailyBars(ctx context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	fullURL := fmt.Sprintf(
		"%s?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.chartURL, code, from.Format("20060102"), to.Format("20060102"),
	)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	bars, err := c.parseBars(code, string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"code":  code,
		"count": len(bars),
	}).Debug("Fetched daily bars")
	return bars, nil
}

// parseBars parses the chart API response. The payload is a JS-style
// array of arrays with single quotes; JSON parsing after quote rewrite
// usually works, with a regex fallback for malformed tails.
func (c *Client) parseBars(code, body string) ([]contracts.PriceBar, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return c.parseBarsJSON(code, rawData), nil
	}

	return c.parseBarsRegex(code, body), nil
}

// parseBarsJSON parses the JSON array format: header row then
// [date, open, high, low, close, volume, ...] rows
func (c *Client) parseBarsJSON(code string, rawData [][]interface{}) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, 0, len(rawData))
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue // 헤더 행
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := parseChartDate(strings.Trim(dateStr, "\""))
		if err != nil {
			continue
		}

		bars = append(bars, contracts.PriceBar{
			Code:   code,
			Date:   date,
			Open:   toFloat(row[1]),
			High:   toFloat(row[2]),
			Low:    toFloat(row[3]),
			Close:  toFloat(row[4]),
			Volume: int64(toFloat(row[5])),
		})
	}
	return sortBars(bars)
}

// parseBarsRegex is the fallback for responses json.Unmarshal rejects
func (c *Client) parseBarsRegex(code, body string) []contracts.PriceBar {
	re := regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*(\d+)`)
	matches := re.FindAllStringSubmatch(body, -1)

	bars := make([]contracts.PriceBar, 0, len(matches))
	for _, match := range matches {
		if len(match) < 7 {
			continue
		}

		date, err := parseChartDate(match[1])
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(match[2], 64)
		high, _ := strconv.ParseFloat(match[3], 64)
		low, _ := strconv.ParseFloat(match[4], 64)
		closePrice, _ := strconv.ParseFloat(match[5], 64)
		volume, _ := strconv.ParseInt(match[6], 10, 64)

		bars = append(bars, contracts.PriceBar{
			Code:   code,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return sortBars(bars)
}

// parseChartDate parses YYYYMMDD into a UTC midnight date
func parseChartDate(s string) (time.Time, error) {
	return time.ParseInLocation("20060102", s, time.UTC)
}

// sortBars orders ascending by date, matching the provider contract
func sortBars(bars []contracts.PriceBar) []contracts.PriceBar {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(strings.Trim(val, "\""), 64)
		return f
	default:
		return 0
	}
}
