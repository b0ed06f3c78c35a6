package krx

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/httputil"
)

// krxListingResponse represents the KRX listing API response
type krxListingResponse struct {
	OutBlock1 []krxListingRow `json:"OutBlock_1"`
}

// krxListingRow represents a row in the KRX listing response
type krxListingRow struct {
	ISU_SRT_CD string `json:"ISU_SRT_CD"` // 종목코드 (단축)
	ISU_ABBRV  string `json:"ISU_ABBRV"`  // 종목명
	LIST_SHRS  string `json:"LIST_SHRS"`  // 상장주식수
}

// FetchListing fetches all listed instruments for one market (KOSPI or KOSDAQ).
// Rows without a code or with zero listed shares are skipped.
// ⭐ SSOT: KRX 상장 종목 조회는 이 함수에서만
func (c *Client) FetchListing(ctx context.Context, market string) ([]contracts.Instrument, error) {
	var mktId string
	switch strings.ToUpper(market) {
	case "KOSPI":
		mktId = "STK"
	case "KOSDAQ":
		mktId = "KSQ"
	default:
		return nil, fmt.Errorf("unsupported market: %s", market)
	}

	trdDd := latestTradeDate(time.Now()).Format("20060102")

	formData := url.Values{
		"bld":         {"dbms/MDC/STAT/standard/MDCSTAT01501"},
		"locale":      {"ko_KR"},
		"mktId":       {mktId},
		"trdDd":       {trdDd},
		"share":       {"1"},
		"money":       {"1"},
		"csvxls_isNo": {"false"},
	}

	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": trdDd,
	}).Info("Fetching instrument listing from KRX")

	resp, err := c.httpClient.Post(ctx, c.dataURL, "application/x-www-form-urlencoded", []byte(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("KRX listing request: %w", err)
	}

	var apiResp krxListingResponse
	if err := httputil.DecodeJSON(resp, &apiResp); err != nil {
		return nil, fmt.Errorf("decode KRX listing: %w", err)
	}

	if len(apiResp.OutBlock1) == 0 {
		c.logger.Warn("KRX listing returned no rows")
		return nil, nil
	}

	instruments := make([]contracts.Instrument, 0, len(apiResp.OutBlock1))
	for _, row := range apiResp.OutBlock1 {
		if row.ISU_SRT_CD == "" || parseKRXNumber(row.LIST_SHRS) == 0 {
			continue
		}
		instruments = append(instruments, contracts.Instrument{
			Code: row.ISU_SRT_CD,
			Name: strings.TrimSpace(row.ISU_ABBRV),
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"market": market,
		"count":  len(instruments),
	}).Info("Fetched instrument listing from KRX")

	return instruments, nil
}

// FetchAllListings fetches listings for both KOSPI and KOSDAQ
func (c *Client) FetchAllListings(ctx context.Context) ([]contracts.Instrument, error) {
	var all []contracts.Instrument

	for _, market := range []string{"KOSPI", "KOSDAQ"} {
		items, err := c.FetchListing(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("fetch %s listing: %w", market, err)
		}
		all = append(all, items...)
	}

	c.logger.WithField("total_count", len(all)).Info("Fetched all listings from KRX")
	return all, nil
}

// latestTradeDate backs an as-of date off to the most recent session:
// before the 16:00 close the previous day is used, and weekends roll
// back to Friday. KRX rejects queries for dates without data.
func latestTradeDate(now time.Time) time.Time {
	d := now
	if d.Hour() < 16 {
		d = d.AddDate(0, 0, -1)
	}
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// parseKRXNumber parses KRX number format (with commas) to int64
func parseKRXNumber(s string) int64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
