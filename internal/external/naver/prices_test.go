package naver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/pkg/logger"
)

func TestParseBarsJSON(t *testing.T) {
	tests := []struct {
		name    string
		rawData [][]interface{}
		want    int
	}{
		{
			name: "valid data with header",
			rawData: [][]interface{}{
				{"날짜", "시가", "고가", "저가", "종가", "거래량"},
				{"20240115", 72300.0, 73000.0, 72000.0, 72500.0, 1000000.0},
				{"20240116", 72500.0, 73500.0, 72300.0, 73000.0, 1200000.0},
			},
			want: 2,
		},
		{
			name: "valid data with string numbers",
			rawData: [][]interface{}{
				{"날짜", "시가", "고가", "저가", "종가", "거래량"},
				{"20240115", "72300", "73000", "72000", "72500", "1000000"},
			},
			want: 1,
		},
		{
			name:    "empty data",
			rawData: [][]interface{}{},
			want:    0,
		},
		{
			name: "rows with insufficient columns are skipped",
			rawData: [][]interface{}{
				{"날짜", "시가"},
				{"20240115", 72300.0, 73000.0},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{logger: logger.Nop()}
			got := c.parseBarsJSON("005930", tt.rawData)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseBarsJSON_Fields(t *testing.T) {
	c := &Client{logger: logger.Nop()}

	got := c.parseBarsJSON("005930", [][]interface{}{
		{"날짜", "시가", "고가", "저가", "종가", "거래량"},
		{"20240115", 72300.0, 73000.0, 72000.0, 72500.0, 1000000.0},
	})
	require.Len(t, got, 1)

	bar := got[0]
	assert.Equal(t, "005930", bar.Code)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), bar.Date)
	assert.Equal(t, 72300.0, bar.Open)
	assert.Equal(t, 73000.0, bar.High)
	assert.Equal(t, 72000.0, bar.Low)
	assert.Equal(t, 72500.0, bar.Close)
	assert.Equal(t, int64(1000000), bar.Volume)
}

func TestParseBars_QuoteRewriteAndSort(t *testing.T) {
	c := &Client{logger: logger.Nop()}

	// 응답은 작은따옴표 JS 배열, 날짜 역순으로 와도 오름차순 정렬
	body := `[['날짜','시가','고가','저가','종가','거래량'],
		['20240116', 72500, 73500, 72300, 73000, 1200000],
		['20240115', 72300, 73000, 72000, 72500, 1000000]]`

	bars, err := c.parseBars("005930", body)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestParseBarsRegex_Fallback(t *testing.T) {
	c := &Client{logger: logger.Nop()}

	// JSON으로는 못 읽는 꼬리가 붙은 응답
	body := `[["날짜","시가","고가","저가","종가","거래량"],
		["20240115", 72300, 73000, 72000, 72500, 1000000],
		["20240116", 72500, 73500, 72300, 73000, 1200000] trailing-garbage`

	bars, err := c.parseBars("KOSPI", body)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "KOSPI", bars[0].Code)
	assert.Equal(t, 72500.0, bars[0].Close)
}
