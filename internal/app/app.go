package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"TrendScanner/internal/cache"
	"TrendScanner/internal/config"
	"TrendScanner/internal/infrastructure/cacheredis"
	"TrendScanner/internal/infrastructure/scheduler"
	"TrendScanner/internal/infrastructure/storage"
	"TrendScanner/internal/logging"
	"TrendScanner/internal/scoring"
	"TrendScanner/internal/trend"
	"TrendScanner/internal/usecase"
)

// Application wires configuration to components and owns their lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	backend   *cacheredis.Backend
	service   *usecase.TrendService
	scheduler *usecase.Scheduler
}

// New validates configuration, connects clients, and assembles the subsystem.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		// Transient at startup: the store is shared infrastructure that may
		// come up after us; per-job errors handle the rest.
		baseLogger.Warn("database unreachable at startup", "error", err)
	}

	backend, err := cacheredis.New(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache backend: %w", err)
	}

	store := storage.NewPostgresRepository(db)
	tiered := cache.New(backend, cfg.Cache, baseLogger.With("component", "cache"))

	resultTTL, err := tiered.TierTTL(cfg.Cache.ResultTier)
	if err != nil {
		_ = db.Close()
		_ = backend.Close()
		return nil, fmt.Errorf("resolve result tier: %w", err)
	}

	aggregator := trend.NewAggregator(trend.AggregatorDeps{
		Store:      store,
		Cache:      tiered,
		Text:       scoring.NewTextScorer(cfg.Scoring),
		Engagement: scoring.NewEngagementScorer(cfg.Scoring),
		Sentiment:  scoring.NewSentimentScorer(),
		Logger:     baseLogger.With("component", "aggregator"),
	}, cfg.Trend, cfg.Cache.ResultTier, resultTTL)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:        store,
		Aggregator:   aggregator,
		Cache:        tiered,
		Logger:       baseLogger.With("component", "orchestrator"),
		Workers:      cfg.Jobs.Workers,
		HistoryLimit: cfg.Trend.HistoryLimit,
		LeaseEnabled: cfg.Jobs.LeaseEnabled,
		LeaseTTL:     cfg.Jobs.LeaseTTL.Duration,
		ResultTier:   cfg.Cache.ResultTier,
	})

	service := usecase.NewTrendService(usecase.ServiceDeps{
		Store:        store,
		Cache:        tiered,
		Orchestrator: orchestrator,
		Ranker:       trend.NewImportanceRanker(cfg.Ranking),
		Logger:       baseLogger.With("component", "service"),
		ResultTier:   cfg.Cache.ResultTier,
		RankingTier:  cfg.Cache.RankingTier,
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	recurring := usecase.NewScheduler(driver, orchestrator, baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		backend:   backend,
		service:   service,
		scheduler: recurring,
	}, nil
}

// Service exposes the trend surface consumed by the API layer.
func (a *Application) Service() *usecase.TrendService {
	return a.service
}

// Run starts the recurring analysis and blocks until the context is canceled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("trend scanner started", "cron", a.cfg.Scheduler.CronExpression)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("cache backend close failed", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
	return nil
}
