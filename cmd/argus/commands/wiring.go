package commands

import (
	"context"
	"fmt"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/deepanalysis"
	"github.com/wonny/argus/backend/internal/marketdata"
	"github.com/wonny/argus/backend/internal/policy"
	"github.com/wonny/argus/backend/internal/portfolio"
	"github.com/wonny/argus/backend/internal/propagation"
	"github.com/wonny/argus/backend/internal/regime"
	"github.com/wonny/argus/backend/internal/relgraph"
	"github.com/wonny/argus/backend/internal/sentiment"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/internal/technical"
	"github.com/wonny/argus/backend/pkg/config"
	"github.com/wonny/argus/backend/pkg/database"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/metrics"
	"github.com/wonny/argus/backend/pkg/redis"
)

// runtime holds the wired process dependencies shared by commands
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	cache    *redis.Cache
	metrics  *metrics.Recorder
	strategy *strategyconfig.Config
	graph    *relgraph.Graph

	orchestrator *brain.Orchestrator

	runRepo     *brain.Repository
	weightsRepo *portfolio.Repository
	graphRepo   *relgraph.Repository
	instruments *marketdata.InstrumentRepository
	prices      *marketdata.PriceRepository
	news        *marketdata.NewsRepository
}

// initRuntime wires the complete pipeline from process configuration.
// The relationship graph is loaded exactly once here; every run in this
// process sees the same point-in-time graph.
func initRuntime(ctx context.Context) (*runtime, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (disabled client when REDIS_ENABLED=false)
	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "argus")

	// 5. Metrics recorder (nil disables recording)
	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	// 6. Load strategy config
	strategy, _, err := strategyconfig.Load(cfg.StrategyConfigPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load strategy config: %w", err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	// 7. Create repositories
	runRepo := brain.NewRepository(db.Pool)
	weightsRepo := portfolio.NewRepository(db.Pool)
	graphRepo := relgraph.NewRepository(db.Pool)
	instrumentRepo := marketdata.NewInstrumentRepository(db.Pool)
	priceRepo := marketdata.NewPriceRepository(db.Pool)
	newsRepo := marketdata.NewNewsRepository(db.Pool)

	// 8. Load the point-in-time relationship graph
	edges, err := graphRepo.LoadGraph(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load relationship graph: %w", err)
	}
	graph, dropped := relgraph.New(edges)
	if dropped > 0 {
		log.WithField("dropped", dropped).Warn("Dropped invalid relationship edges")
	}

	// 9. Create deep-analysis client (Null analyzer when not configured).
	// Verdicts cache by article ID so reruns and replays skip paid calls.
	var deep contracts.DeepAnalyzer = deepanalysis.NewClient(cfg, log, rec)
	if cfg.DeepEnabled() {
		deep = deepanalysis.NewCached(deep, cache, log)
	}

	// 10. Create pipeline components
	classifier := regime.NewClassifier(strategy.Regime, regime.NewBaumWelch(strategy.Regime.MaxIterations), log)
	scorer := technical.NewScorer(strategy.Technical, log)
	engine := sentiment.NewEngine(strategy.Sentiment, deep, log)
	propagator := propagation.NewPropagator(strategy.Propagation, graph, log)
	gate := policy.NewGate(strategy.Gates, log)
	constructor := portfolio.NewConstructor(strategy.Portfolio, log)

	// 11. Create orchestrator
	orchestrator := brain.NewOrchestrator(
		strategy,
		classifier,
		scorer,
		engine,
		propagator,
		gate,
		constructor,
		priceRepo,
		newsRepo,
		instrumentRepo,
		runRepo,
		weightsRepo,
		graphRepo,
		rec,
		log,
	)

	log.WithFields(map[string]interface{}{
		"strategy":    strategy.Meta.StrategyID,
		"graph_edges": graph.Size(),
		"env":         cfg.Env,
	}).Info("Runtime initialized")

	return &runtime{
		cfg:          cfg,
		log:          log,
		db:           db,
		redis:        redisClient,
		cache:        cache,
		metrics:      rec,
		strategy:     strategy,
		graph:        graph,
		orchestrator: orchestrator,
		runRepo:      runRepo,
		weightsRepo:  weightsRepo,
		graphRepo:    graphRepo,
		instruments:  instrumentRepo,
		prices:       priceRepo,
		news:         newsRepo,
	}, nil
}

// Close releases database and Redis connections
func (rt *runtime) Close() {
	if err := rt.redis.Close(); err != nil {
		rt.log.WithError(err).Warn("Failed to close redis connection")
	}
	rt.db.Close()
}
