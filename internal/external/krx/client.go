package krx

import (
	"github.com/wonny/argus/backend/pkg/httputil"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Client fetches the listed-instrument directory from KRX
// ⭐ SSOT: KRX 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	dataURL    string
}

// NewClient creates a new KRX client.
// KRX drops bot-looking requests, so the client carries browser headers
// on every call instead of setting them per request.
func NewClient(log *logger.Logger) *Client {
	httpClient := httputil.New(log).
		WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36").
		WithHeader("Accept", "application/json, text/javascript, */*; q=0.01").
		WithHeader("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7").
		WithHeader("Origin", "http://data.krx.co.kr").
		WithHeader("Referer", "http://data.krx.co.kr/contents/MDC/MDI/mdiLoader/index.cmd?menuId=MDC0201020101")

	return &Client{
		httpClient: httpClient,
		logger:     log,
		dataURL:    "http://data.krx.co.kr/comm/bldAttendant/getJsonData.cmd",
	}
}
