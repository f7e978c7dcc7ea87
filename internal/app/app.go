package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/CatalogSyncGo/internal/cache"
	"github.com/utafrali/CatalogSyncGo/internal/config"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	esengine "github.com/utafrali/CatalogSyncGo/internal/engine/elasticsearch"
	"github.com/utafrali/CatalogSyncGo/internal/engine/memory"
	"github.com/utafrali/CatalogSyncGo/internal/event"
	"github.com/utafrali/CatalogSyncGo/internal/fetcher"
	handler "github.com/utafrali/CatalogSyncGo/internal/handler/http"
	"github.com/utafrali/CatalogSyncGo/internal/indexer"
	"github.com/utafrali/CatalogSyncGo/internal/ingest"
	"github.com/utafrali/CatalogSyncGo/internal/query"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
	"github.com/utafrali/CatalogSyncGo/internal/repository/postgres"
	"github.com/utafrali/CatalogSyncGo/internal/repository/rediscache"
	"github.com/utafrali/CatalogSyncGo/migrations"
	"github.com/utafrali/CatalogSyncGo/pkg/database"
	"github.com/utafrali/CatalogSyncGo/pkg/health"
	"github.com/utafrali/CatalogSyncGo/pkg/httpclient"
	"github.com/utafrali/CatalogSyncGo/pkg/tracing"
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	pool         *pgxpool.Pool
	producer     *event.Producer
	orchestrator *ingest.Orchestrator
	httpServer   *http.Server
	stopTracing  func(context.Context) error
}

// reindexerAdapter narrows the indexer for the HTTP layer.
type reindexerAdapter struct {
	indexer  *indexer.Indexer
	products repository.ProductRepository
}

func (a reindexerAdapter) Reindex(ctx context.Context) error {
	_, err := a.indexer.Reindex(ctx, a.products)
	return err
}

// NewApp creates the application with all dependencies wired. The context is
// used for startup work: connecting, migrating, tracing setup.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Tracing (no-op unless enabled).
	traceCfg := tracing.DefaultConfig("catalog-service")
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
	traceCfg.SampleRate = cfg.TraceSampleRate
	traceCfg.Enabled = cfg.TracingEnabled
	stopTracing, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Relational store.
	pool, err := database.NewPostgresPoolWithLogger(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, "catalog")

	var products repository.ProductRepository = postgres.NewProductRepository(pool)
	categories := postgres.NewCategoryRepository(pool)

	if cfg.RedisEnabled() {
		redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		products = rediscache.New(products, redisClient, cfg.RedisTTL)
		logger.Info("redis product cache enabled", slog.String("addr", cfg.Redis().Addr()))
	}

	// Search engine.
	var eng engine.SearchEngine
	var esEng *esengine.Engine
	switch cfg.SearchEngine {
	case "elasticsearch":
		client, err := esengine.NewClient([]string{cfg.ElasticsearchURL})
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		esEng = esengine.New(client, cfg.ElasticsearchIndex, logger)
		eng = esEng
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex))
	default:
		eng = memory.New()
		logger.Info("in-memory search engine initialized")
	}

	// Source fetcher with its response cache.
	responseCache, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("init response cache: %w", err)
	}
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.FetchTimeout
	sourceFetcher := fetcher.New(httpclient.New(clientCfg), responseCache, cfg.SourceURL, logger)

	docIndexer := indexer.New(eng, cfg.IndexChunkSize, logger)
	searchService := query.New(eng, products, cfg.SearchTimeout, logger)

	// Run-report events.
	var producer *event.Producer
	var publisher ingest.ReportPublisher
	if cfg.KafkaEnabled() {
		producer = event.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = producer
		logger.Info("kafka run-report producer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic))
	}

	orchestrator := ingest.New(
		func() ingest.BatchSource { return sourceFetcher.NewPager(0, cfg.SourcePageSize) },
		products, docIndexer, publisher, cfg.IngestWorkers, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", products.Ping)
	healthHandler.Register("search", eng.Ping)

	router := handler.NewRouter(
		handler.NewProductHandler(products, categories, logger),
		handler.NewSearchHandler(searchService, logger),
		handler.NewIngestHandler(orchestrator, reindexerAdapter{indexer: docIndexer, products: products}, logger),
		healthHandler,
		logger,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		producer:     producer,
		orchestrator: orchestrator,
		httpServer:   httpServer,
		stopTracing:  stopTracing,
	}, nil
}

// Orchestrator exposes the run coordinator, mainly for the one-shot CLI.
func (a *App) Orchestrator() *ingest.Orchestrator {
	return a.orchestrator
}

// Run starts the HTTP server and the optional ingestion scheduler, blocking
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.cfg.IngestInterval > 0 {
		go a.runScheduler(ctx)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runScheduler triggers ingestion runs on a fixed interval. A run still in
// progress when the ticker fires is skipped via the orchestrator's own
// conflict guard.
func (a *App) runScheduler(ctx context.Context) {
	a.logger.Info("ingestion scheduler started",
		slog.Duration("interval", a.cfg.IngestInterval))

	ticker := time.NewTicker(a.cfg.IngestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.orchestrator.Run(ctx); err != nil {
				a.logger.Error("scheduled ingestion run failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.stopTracing(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
