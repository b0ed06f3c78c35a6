package sentiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/argus/backend/internal/contracts"
)

func newsAt(id, headline string, ts time.Time) contracts.NewsItem {
	return contracts.NewsItem{
		ID:        id,
		Code:      "005930",
		Timestamp: ts,
		Headline:  headline,
		Source:    "test",
	}
}

func TestCollapseDuplicates(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	items := []contracts.NewsItem{
		newsAt("c", "Nvidia beats earnings expectations again", base.Add(2*time.Hour)),
		newsAt("a", "Nvidia beats earnings expectations", base),
		newsAt("b", "Regulators probe chip export licenses", base.Add(time.Hour)),
	}

	kept, collapsed := CollapseDuplicates(items, 0.6)

	assert.Equal(t, 1, collapsed)
	assert.Len(t, kept, 2)

	// The earliest report of the duplicated story survives
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "b", kept[1].ID)
}

func TestCollapseDuplicates_DistinctStoriesSurvive(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	items := []contracts.NewsItem{
		newsAt("a", "Nvidia beats earnings expectations", base),
		newsAt("b", "TSMC expands Arizona fab capacity", base.Add(time.Minute)),
	}

	kept, collapsed := CollapseDuplicates(items, 0.6)
	assert.Equal(t, 0, collapsed)
	assert.Len(t, kept, 2)
}

func TestCollapseDuplicates_Korean(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// 통신사 전재 기사는 접혀야 하고, 다른 기사끼리 접히면 안 된다
	items := []contracts.NewsItem{
		newsAt("a", "삼성전자 2분기 잠정 실적 발표", base),
		newsAt("b", "삼성전자 2분기 잠정 실적 발표 속보", base.Add(10*time.Minute)),
		newsAt("c", "SK하이닉스 노조 파업 예고", base.Add(20*time.Minute)),
	}

	kept, collapsed := CollapseDuplicates(items, 0.6)

	assert.Equal(t, 1, collapsed)
	assert.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "c", kept[1].ID)
}

func TestCollapseDuplicates_SingleItem(t *testing.T) {
	items := []contracts.NewsItem{newsAt("a", "headline", time.Now())}
	kept, collapsed := CollapseDuplicates(items, 0.6)
	assert.Equal(t, 0, collapsed)
	assert.Len(t, kept, 1)
}

func TestJaccard(t *testing.T) {
	a := tokenSet("nvidia beats earnings expectations")
	b := tokenSet("nvidia beats earnings expectations again")
	// 4 shared tokens, union 5
	assert.InDelta(t, 0.8, jaccard(a, b), 1e-12)

	assert.Equal(t, 1.0, jaccard(tokenSet(""), tokenSet("")))
	assert.Equal(t, 0.0, jaccard(tokenSet("alpha"), tokenSet("beta")))
}
