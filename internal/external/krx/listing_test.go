package krx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/pkg/httputil"
	"github.com/wonny/argus/backend/pkg/logger"
)

func newTestClient(dataURL string) *Client {
	return &Client{
		httpClient: httputil.New(logger.Nop()).DisableRetry(),
		logger:     logger.Nop(),
		dataURL:    dataURL,
	}
}

func TestFetchListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "dbms/MDC/STAT/standard/MDCSTAT01501", r.Form.Get("bld"))
		assert.Equal(t, "STK", r.Form.Get("mktId"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"OutBlock_1": [
			{"ISU_SRT_CD": "005930", "ISU_ABBRV": "삼성전자", "LIST_SHRS": "5,969,782,550"},
			{"ISU_SRT_CD": "000660", "ISU_ABBRV": " SK하이닉스 ", "LIST_SHRS": "728,002,365"},
			{"ISU_SRT_CD": "", "ISU_ABBRV": "이상한 행", "LIST_SHRS": "100"},
			{"ISU_SRT_CD": "999999", "ISU_ABBRV": "상장주식수 없음", "LIST_SHRS": "-"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.FetchListing(context.Background(), "KOSPI")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "005930", got[0].Code)
	assert.Equal(t, "삼성전자", got[0].Name)
	assert.Equal(t, "SK하이닉스", got[1].Name) // 앞뒤 공백 제거
}

func TestFetchListing_KosdaqMarketCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "KSQ", r.Form.Get("mktId"))
		w.Write([]byte(`{"OutBlock_1": []}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.FetchListing(context.Background(), "kosdaq")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchListing_UnsupportedMarket(t *testing.T) {
	c := newTestClient("http://unused")
	_, err := c.FetchListing(context.Background(), "NYSE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported market")
}

func TestFetchListing_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchListing(context.Background(), "KOSPI")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode KRX listing")
}

func TestLatestTradeDate(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "weekday after close stays",
			now:  time.Date(2024, 1, 17, 17, 0, 0, 0, time.UTC), // 수요일
			want: time.Date(2024, 1, 17, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "weekday before close backs up a day",
			now:  time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "monday morning rolls to friday",
			now:  time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday rolls to friday",
			now:  time.Date(2024, 1, 13, 20, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday rolls to friday",
			now:  time.Date(2024, 1, 14, 20, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := latestTradeDate(tt.now)
			assert.Equal(t, tt.want.Format("20060102"), got.Format("20060102"))
		})
	}
}

func TestParseKRXNumber(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"5,969,782,550", 5969782550},
		{"1000", 1000},
		{" 1,234 ", 1234},
		{"-", 0},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKRXNumber(tt.input))
		})
	}
}
