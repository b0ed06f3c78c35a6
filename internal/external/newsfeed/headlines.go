package newsfeed

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/wonny/argus/backend/internal/contracts"
)

// FetchLatest fetches the feed's current headline page across all codes.
// The feed serves a rolling window, so overlapping fetches return
// overlapping items; IDs are stable, making the save path idempotent.
// ⭐ SSOT: 뉴스 피드 헤드라인 파싱은 이 파일에서만
func (c *Client) FetchLatest(ctx context.Context) ([]contracts.NewsItem, error) {
	html, err := c.fetchHTML(ctx, "/headlines")
	if err != nil {
		return nil, err
	}

	items := c.parseHeadlines(html)
	c.logger.WithField("count", len(items)).Debug("Fetched headlines")
	return items, nil
}

// GetNews fetches headlines for one code within a window.
// Feed pages are recent-only; callers needing deep history read the
// news repository instead.
func (c *Client) GetNews(ctx context.Context, code string, from, to time.Time) ([]contracts.NewsItem, error) {
	html, err := c.fetchHTML(ctx, "/headlines?code="+url.QueryEscape(code))
	if err != nil {
		return nil, err
	}

	items := make([]contracts.NewsItem, 0)
	for _, item := range c.parseHeadlines(html) {
		if item.Code != code {
			continue
		}
		if item.Timestamp.Before(from) || item.Timestamp.After(to) {
			continue
		}
		items = append(items, item)
	}

	c.logger.WithFields(map[string]interface{}{
		"code":  code,
		"count": len(items),
	}).Debug("Fetched news for code")
	return items, nil
}

// parseHeadlines extracts news items from a feed page.
//
// 피드 HTML 구조:
//
//	<li class="headline" data-code="005930">
//	  <a class="title" href="/articles/8821">삼성전자 2분기 잠정 실적 발표</a>
//	  <p class="summary">...</p>
//	  <span class="press">연합뉴스</span>
//	  <time datetime="2025-06-12T09:30:00+09:00">09:30</time>
//	</li>
//
// Rows missing a code, title, or parseable timestamp are skipped; a feed
// rendering glitch must not poison the store.
func (c *Client) parseHeadlines(html string) []contracts.NewsItem {
	items := make([]contracts.NewsItem, 0)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.WithError(err).Warn("Failed to parse feed HTML")
		return items
	}

	skipped := 0
	doc.Find("li.headline").Each(func(i int, row *goquery.Selection) {
		code := strings.TrimSpace(row.AttrOr("data-code", ""))

		title := row.Find("a.title")
		headline := strings.TrimSpace(title.Text())
		href := strings.TrimSpace(title.AttrOr("href", ""))

		timestamp, terr := time.Parse(time.RFC3339, row.Find("time").AttrOr("datetime", ""))
		if code == "" || headline == "" || href == "" || terr != nil {
			skipped++
			return
		}

		items = append(items, contracts.NewsItem{
			// 같은 기사는 몇 번을 다시 긁어도 같은 ID
			ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.baseURL+href)).String(),
			Code:      code,
			Timestamp: timestamp.UTC(),
			Headline:  headline,
			Body:      strings.TrimSpace(row.Find("p.summary").Text()),
			Source:    strings.TrimSpace(row.Find("span.press").Text()),
		})
	})

	if skipped > 0 {
		c.logger.WithField("skipped", skipped).Warn("Skipped malformed feed rows")
	}
	return items
}
