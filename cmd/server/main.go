package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/api"
	"github.com/franaraujo77/investments-planner-sub008/internal/clients"
	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/database"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/providers"
	"github.com/franaraujo77/investments-planner-sub008/internal/services"
	"github.com/franaraujo77/investments-planner-sub008/internal/telemetry"
)

const serviceName = "investments-planner"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	logger.LogStartup(serviceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	redisClient, err := database.NewRedisConnection(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	minAllocation, err := decimal.NewFromString(cfg.Allocation.MinAllocationValue)
	if err != nil {
		return fmt.Errorf("invalid allocation.min_allocation_value %q: %w", cfg.Allocation.MinAllocationValue, err)
	}

	// Resilience layer.
	breakers := services.NewBreakerRegistry(services.BreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
	}, logger)
	retrier := services.NewRetryExecutor(services.RetryPolicyFromConfig(cfg.Retry), logger)
	cacheStore := services.NewCacheStore(redisClient.Client, logger, cfg.Providers.StaleRetention)
	rateStore := services.NewRateStore(redisClient.Client, logger, cfg.Providers.StaleRetention)

	// Provider chains.
	priceChain, err := buildPriceChain(cfg, cacheStore, breakers, retrier, logger)
	if err != nil {
		return err
	}
	rateChain, err := buildRateChain(cfg, cacheStore, breakers, retrier, rateStore, logger)
	if err != nil {
		return err
	}
	fundamentalsChain, err := buildFundamentalsChain(cfg, cacheStore, breakers, retrier, logger)
	if err != nil {
		return err
	}
	// Keep the rate store warm so the converter never needs a live call.
	refreshRates(ctx, rateChain, cfg.Allocation.BaseCurrency, logger)

	// Domain services.
	audit := services.NewAuditEmitter(redisClient.Client, logger, cfg.Audit)
	defer audit.Close()

	converter := services.NewCurrencyConverter(rateStore, audit, logger, cfg.Allocation.StaleRateThreshold)
	recCache := services.NewRecommendationCache(redisClient.Client, logger, cfg.Allocation.RecommendationTTL)
	portfolioClient := clients.NewPortfolioClient(cfg.Collaborators.Portfolio)
	scoringClient := clients.NewScoringClient(cfg.Collaborators.Scoring)

	engine := services.NewAllocationEngine(
		portfolioClient,
		scoringClient,
		converter,
		recCache,
		audit,
		logger,
		models.AllocationConstraints{
			MinAllocationValue: minAllocation,
			MaxAssetsPerClass:  cfg.Allocation.MaxAssetsPerClass,
		},
		cfg.Allocation.RecommendationTTL,
	)

	monitor := services.NewResourceMonitor(logger)
	batchDriver := services.NewBatchDriver(engine, monitor, audit, logger, cfg.Batch)

	handler := api.NewHandler(engine, recCache, breakers, redisClient, logger, cfg.Allocation.BaseCurrency).
		WithMarketData(priceChain, rateChain, fundamentalsChain).
		WithBatch(batchDriver)
	router := api.NewRouter(handler, cfg.Environment)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.LogShutdown(serviceName, "signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func buildPriceChain(cfg *config.Config, cache *services.CacheStore, breakers *services.BreakerRegistry, retrier *services.RetryExecutor, logger logging.Logger) (*services.PriceChain, error) {
	chain, err := buildProviderPair(cfg.Providers.Prices, providers.BuildPriceProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to build price providers: %w", err)
	}
	return services.NewPriceChain(chain, cache, breakers, retrier, logger, cfg.Providers.Prices), nil
}

func buildRateChain(cfg *config.Config, cache *services.CacheStore, breakers *services.BreakerRegistry, retrier *services.RetryExecutor, rateStore *services.RateStore, logger logging.Logger) (*services.RateChain, error) {
	chain, err := buildProviderPair(cfg.Providers.Rates, providers.BuildRateProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate providers: %w", err)
	}
	return services.NewRateChain(chain, cache, breakers, retrier, rateStore, logger, cfg.Providers.Rates), nil
}

func buildFundamentalsChain(cfg *config.Config, cache *services.CacheStore, breakers *services.BreakerRegistry, retrier *services.RetryExecutor, logger logging.Logger) (*services.FundamentalsChain, error) {
	chain, err := buildProviderPair(cfg.Providers.Fundamentals, providers.BuildFundamentalsProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to build fundamentals providers: %w", err)
	}
	return services.NewFundamentalsChain(chain, cache, breakers, retrier, logger, cfg.Providers.Fundamentals), nil
}

func buildProviderPair[T any](cfg config.ProviderChainConfig, build func(config.ProviderEndpointConfig) (T, error)) ([]T, error) {
	primary, err := build(cfg.Primary)
	if err != nil {
		return nil, err
	}
	chain := []T{primary}
	if cfg.Fallback.Name != "" {
		fallback, err := build(cfg.Fallback)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fallback)
	}
	return chain, nil
}

// refreshRates pre-warms the rate store with common pairs against the base
// currency. Failures are logged, not fatal: the converter degrades to
// RATE_NOT_FOUND until the next refresh.
func refreshRates(ctx context.Context, rateChain *services.RateChain, baseCurrency string, logger logging.Logger) {
	pairs := map[string][]string{
		"USD": {baseCurrency},
		"EUR": {baseCurrency},
	}
	for base, targets := range pairs {
		if _, err := rateChain.FetchRates(ctx, base, targets, services.FetchOptions{}); err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"base": base,
			}).Warn("rate refresh failed at startup")
		}
	}
}
