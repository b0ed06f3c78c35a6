package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/external/krx"
	"github.com/wonny/argus/backend/internal/external/naver"
	"github.com/wonny/argus/backend/internal/external/newsfeed"
	"github.com/wonny/argus/backend/pkg/httputil"
	"github.com/wonny/argus/backend/pkg/redis"
)

var (
	fetchPriceCodes string
	fetchPriceDays  int
	fetchMarket     string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "외부 데이터 수집",
	Long: `외부 소스에서 데이터를 가져와 저장소에 기록합니다.

Subcommands:
  news        - 뉴스 피드에서 최신 헤드라인 수집
  prices      - Naver Finance에서 일봉 수집 (증분)
  instruments - KRX에서 상장 종목 마스터 갱신

Example:
  go run ./cmd/argus fetch news
  go run ./cmd/argus fetch prices --days 400
  go run ./cmd/argus fetch instruments --market kospi`,
}

var fetchNewsCmd = &cobra.Command{
	Use:   "news",
	Short: "뉴스 피드 수집",
	Long: `설정된 뉴스 피드에서 최신 헤드라인을 가져와 저장합니다.

저장은 기사 ID 기준으로 멱등하므로 반복 실행해도 안전합니다.

Example:
  go run ./cmd/argus fetch news`,
	RunE: fetchNews,
}

var fetchPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "일봉 가격 수집",
	Long: `Naver Finance에서 일봉 OHLCV를 가져와 저장합니다.

기본 대상은 전략 유니버스 종목과 벤치마크 지수입니다. 이미 저장된
종목은 마지막 저장일 다음 날부터 증분 수집합니다.

Example:
  go run ./cmd/argus fetch prices
  go run ./cmd/argus fetch prices --codes 005930,000660 --days 30`,
	RunE: fetchPrices,
}

var fetchInstrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "상장 종목 마스터 갱신",
	Long: `KRX에서 상장 종목 목록을 가져와 종목 마스터를 갱신합니다.

Example:
  go run ./cmd/argus fetch instruments
  go run ./cmd/argus fetch instruments --market kosdaq`,
	RunE: fetchInstruments,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchNewsCmd)
	fetchCmd.AddCommand(fetchPricesCmd)
	fetchCmd.AddCommand(fetchInstrumentsCmd)

	fetchPricesCmd.Flags().StringVar(&fetchPriceCodes, "codes", "", "수집할 종목 코드 (쉼표 구분, 기본: 유니버스+벤치마크)")
	fetchPricesCmd.Flags().IntVar(&fetchPriceDays, "days", 400, "신규 종목의 소급 수집 일수")
	fetchInstrumentsCmd.Flags().StringVar(&fetchMarket, "market", "all", "대상 시장 (kospi, kosdaq, all)")
}

func fetchNews(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus News Fetch ===")

	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.cfg.NewsFeedEnabled() {
		return fmt.Errorf("news feed not configured (set NEWSFEED_BASE_URL)")
	}

	limiter := redis.NewRateLimiter(rt.redis, "argus")
	feed := newsfeed.NewClient(rt.cfg, limiter, rt.log)

	items, err := feed.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("fetch headlines: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("\nNo headlines in the feed window")
		return nil
	}

	if err := rt.news.SaveItems(ctx, items); err != nil {
		return fmt.Errorf("save headlines: %w", err)
	}

	fmt.Printf("\n✅ Saved %d headlines\n", len(items))
	printNewsCoverage(cmd, rt)
	return nil
}

// printNewsCoverage shows stored-headline counts over the window the
// sentiment engine will actually read. Coverage failures only warn.
func printNewsCoverage(cmd *cobra.Command, rt *runtime) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -rt.strategy.Sentiment.CurrentWindowDays)

	counts, err := rt.news.CountByCode(cmd.Context(), from, to)
	if err != nil {
		rt.log.WithError(err).Warn("Failed to compute news coverage")
		return
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Printf("\nCoverage (last %d days):\n", rt.strategy.Sentiment.CurrentWindowDays)
	for _, code := range codes {
		fmt.Printf("  %s: %d\n", code, counts[code])
	}
}

func fetchPrices(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Price Fetch ===")

	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	codes := splitCodes(fetchPriceCodes)
	if len(codes) == 0 {
		codes = append(codes, rt.strategy.Universe.Instruments...)
		if rt.strategy.Universe.Benchmark != "" {
			codes = append(codes, rt.strategy.Universe.Benchmark)
		}
	}
	if len(codes) == 0 {
		return fmt.Errorf("no codes to fetch (set --codes or universe.instruments in the strategy file)")
	}

	nv := naver.NewClient(httputil.New(rt.log), rt.log)
	to := time.Now().UTC()

	var totalBars int
	for _, code := range codes {
		from, err := priceFetchStart(cmd, rt, code, to)
		if err != nil {
			return fmt.Errorf("resolve fetch window for %s: %w", code, err)
		}
		if !from.Before(to) {
			fmt.Printf("  %s: up to date\n", code)
			continue
		}

		bars, err := nv.FetchDailyBars(ctx, code, from, to)
		if err != nil {
			return fmt.Errorf("fetch bars for %s: %w", code, err)
		}
		if len(bars) == 0 {
			fmt.Printf("  %s: no new bars\n", code)
			continue
		}

		if err := rt.prices.SaveBars(ctx, bars); err != nil {
			return fmt.Errorf("save bars for %s: %w", code, err)
		}

		totalBars += len(bars)
		fmt.Printf("  %s: %d bars (%s ~ %s)\n", code, len(bars),
			bars[0].Date.Format("2006-01-02"), bars[len(bars)-1].Date.Format("2006-01-02"))
	}

	fmt.Printf("\n✅ Saved %d bars across %d codes\n", totalBars, len(codes))
	return nil
}

// priceFetchStart picks the incremental window start: the day after the
// last stored bar, or --days back for codes with no history yet.
func priceFetchStart(cmd *cobra.Command, rt *runtime, code string, to time.Time) (time.Time, error) {
	latest, err := rt.prices.LatestDate(cmd.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return to.AddDate(0, 0, -fetchPriceDays), nil
		}
		return time.Time{}, err
	}
	return latest.AddDate(0, 0, 1), nil
}

func fetchInstruments(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Instrument Fetch ===")

	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	client := krx.NewClient(rt.log)

	var instruments []contracts.Instrument
	switch strings.ToLower(fetchMarket) {
	case "all":
		items, err := client.FetchAllListings(ctx)
		if err != nil {
			return err
		}
		instruments = items
	case "kospi", "kosdaq":
		items, err := client.FetchListing(ctx, fetchMarket)
		if err != nil {
			return err
		}
		instruments = items
	default:
		return fmt.Errorf("invalid market %q (must be kospi, kosdaq, or all)", fetchMarket)
	}

	if len(instruments) == 0 {
		fmt.Println("\nNo instruments returned")
		return nil
	}

	for _, inst := range instruments {
		if err := rt.instruments.UpsertInstrument(ctx, inst); err != nil {
			return fmt.Errorf("upsert %s: %w", inst.Code, err)
		}
	}

	fmt.Printf("\n✅ Upserted %d instruments\n", len(instruments))
	return nil
}

func splitCodes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if code := strings.TrimSpace(p); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
