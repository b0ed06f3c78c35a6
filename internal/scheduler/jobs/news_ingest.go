package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

// HeadlineFetcher pulls recent code-mapped headlines from the external feed
type HeadlineFetcher interface {
	FetchLatest(ctx context.Context) ([]contracts.NewsItem, error)
}

// NewsSink persists fetched news items
type NewsSink interface {
	SaveItems(ctx context.Context, items []contracts.NewsItem) error
}

// NewsIngestJob keeps the news store fresh for the next decision run
// ⭐ SSOT: 뉴스 수집 스케줄은 이 Job에서만
type NewsIngestJob struct {
	fetcher HeadlineFetcher
	sink    NewsSink
	logger  *logger.Logger
}

// NewNewsIngestJob creates a new news ingest job
func NewNewsIngestJob(fetcher HeadlineFetcher, sink NewsSink, log *logger.Logger) *NewsIngestJob {
	return &NewsIngestJob{
		fetcher: fetcher,
		sink:    sink,
		logger:  log,
	}
}

// Name returns the job name
func (j *NewsIngestJob) Name() string {
	return "news_ingest"
}

// Schedule returns the cron schedule (hourly)
func (j *NewsIngestJob) Schedule() string {
	return "0 0 * * * *" // every hour on the hour (with seconds)
}

// Run fetches the latest headlines and stores them.
// Saving is idempotent on item ID, so overlapping fetch windows are safe.
func (j *NewsIngestJob) Run(ctx context.Context) error {
	items, err := j.fetcher.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("fetch headlines: %w", err)
	}

	if len(items) == 0 {
		j.logger.Debug("No new headlines")
		return nil
	}

	if err := j.sink.SaveItems(ctx, items); err != nil {
		return fmt.Errorf("save headlines: %w", err)
	}

	j.logger.WithField("items", len(items)).Info("Headlines ingested")
	return nil
}
