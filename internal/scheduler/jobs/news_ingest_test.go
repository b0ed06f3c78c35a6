package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

type fakeFetcher struct {
	items []contracts.NewsItem
	err   error
}

func (f *fakeFetcher) FetchLatest(ctx context.Context) ([]contracts.NewsItem, error) {
	return f.items, f.err
}

type fakeSink struct {
	saved []contracts.NewsItem
	err   error
}

func (f *fakeSink) SaveItems(ctx context.Context, items []contracts.NewsItem) error {
	f.saved = items
	return f.err
}

func headline(id, code string) contracts.NewsItem {
	return contracts.NewsItem{
		ID:        id,
		Code:      code,
		Timestamp: time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC),
		Headline:  "실적 발표",
		Source:    "feed",
	}
}

func TestNewsIngestJob_SavesFetchedItems(t *testing.T) {
	fetcher := &fakeFetcher{items: []contracts.NewsItem{
		headline("n1", "005930"),
		headline("n2", "000660"),
	}}
	sink := &fakeSink{}
	job := NewNewsIngestJob(fetcher, sink, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sink.saved, 2)
	assert.Equal(t, "n1", sink.saved[0].ID)
	assert.Equal(t, "n2", sink.saved[1].ID)
}

func TestNewsIngestJob_EmptyFetchSkipsSave(t *testing.T) {
	sink := &fakeSink{}
	job := NewNewsIngestJob(&fakeFetcher{}, sink, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Nil(t, sink.saved)
}

func TestNewsIngestJob_FetchError(t *testing.T) {
	job := NewNewsIngestJob(&fakeFetcher{err: assert.AnError}, &fakeSink{}, logger.Nop())

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "fetch headlines")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewsIngestJob_SaveError(t *testing.T) {
	fetcher := &fakeFetcher{items: []contracts.NewsItem{headline("n1", "005930")}}
	job := NewNewsIngestJob(fetcher, &fakeSink{err: assert.AnError}, logger.Nop())

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "save headlines")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewsIngestJob_Identity(t *testing.T) {
	job := NewNewsIngestJob(&fakeFetcher{}, &fakeSink{}, logger.Nop())

	assert.Equal(t, "news_ingest", job.Name())
	assert.Equal(t, "0 0 * * * *", job.Schedule())
}
