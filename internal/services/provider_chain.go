package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/providers"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// SourceCache is the provenance value for results served from the fresh cache.
const SourceCache = "cache"

// FetchOptions controls a single chain fetch.
type FetchOptions struct {
	// SkipCache forces a live provider fetch even when a fresh cached value exists.
	SkipCache bool
}

// FetchResult carries a chain's payload with provenance attached.
type FetchResult[T any] struct {
	Items     []T       `json:"items"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	IsStale   bool      `json:"is_stale"`
}

// chainCore bundles the resilience collaborators shared by every typed chain.
type chainCore struct {
	dataType models.DataType
	cache    *CacheStore
	breakers *BreakerRegistry
	retrier  *RetryExecutor
	logger   logging.Logger
	cacheTTL time.Duration
}

func newChainCore(dataType models.DataType, cache *CacheStore, breakers *BreakerRegistry, retrier *RetryExecutor, logger logging.Logger, cacheTTL time.Duration) *chainCore {
	return &chainCore{
		dataType: dataType,
		cache:    cache,
		breakers: breakers,
		retrier:  retrier,
		logger:   logger.WithComponent("provider_chain").WithFields(map[string]interface{}{"data_type": string(dataType)}),
		cacheTTL: cacheTTL,
	}
}

// chainAttempt is one provider in priority order.
type chainAttempt[T any] struct {
	name  string
	fetch func(ctx context.Context) ([]T, error)
}

// fetchThroughChain runs the full degradation sequence: fresh cache, providers
// in priority order behind breaker and retry, stale cache, aggregate failure.
// Provider attempts are sequential; breaker state is updated before the next
// provider is consulted.
func fetchThroughChain[T any](ctx context.Context, core *chainCore, cacheKey string, opts FetchOptions, attempts []chainAttempt[T]) (*FetchResult[T], error) {
	if !opts.SkipCache {
		var cached FetchResult[T]
		hit, err := core.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			core.logger.WithError(err).Warn("cache read failed, continuing to providers")
		} else if hit {
			cached.Source = SourceCache
			return &cached, nil
		}
	}

	var attemptErrs *multierror.Error
	for _, attempt := range attempts {
		breaker := core.breakers.GetOrCreate(attempt.name)
		allowed, nextAttemptAt := breaker.Allow()
		if !allowed {
			skipErr := utils.NewAppErrorf(utils.CodeProviderFailed,
				"provider %s skipped: circuit open until %s", attempt.name, nextAttemptAt.Format(time.RFC3339))
			attemptErrs = multierror.Append(attemptErrs, skipErr)
			core.logger.WithFields(map[string]interface{}{
				"provider":        attempt.name,
				"next_attempt_at": nextAttemptAt,
			}).Warn("provider skipped, circuit open")
			continue
		}

		var items []T
		operationName := fmt.Sprintf("%s_fetch_%s", attempt.name, core.dataType)
		err := core.retrier.Execute(ctx, operationName, func(ctx context.Context) error {
			fetched, fetchErr := attempt.fetch(ctx)
			if fetchErr != nil {
				return fetchErr
			}
			items = fetched
			return nil
		})
		if err != nil {
			// Only the caller's own context distinguishes cancellation from a
			// provider that timed out: a hung upstream also surfaces as
			// context.DeadlineExceeded via the per-attempt timeout, and that
			// one must count against the breaker and fall through the chain.
			if ctx.Err() != nil {
				breaker.RecordCancel()
				return nil, err
			}
			if providerFault(err) {
				breaker.RecordFailure()
			} else {
				breaker.RecordCancel()
			}
			attemptErrs = multierror.Append(attemptErrs, fmt.Errorf("provider %s: %w", attempt.name, err))
			core.logger.WithError(err).WithFields(map[string]interface{}{
				"provider": attempt.name,
			}).Warn("provider attempt failed, trying next in chain")
			continue
		}

		breaker.RecordSuccess()
		result := &FetchResult[T]{
			Items:     items,
			Source:    attempt.name,
			FetchedAt: time.Now().UTC(),
		}
		if cacheErr := core.cache.Set(ctx, cacheKey, result, core.cacheTTL); cacheErr != nil {
			core.logger.WithError(cacheErr).Warn("cache write failed after successful fetch")
		}
		return result, nil
	}

	// Degraded mode: expired cache entries are still served, flagged stale.
	var stale FetchResult[T]
	hit, err := core.cache.GetStale(ctx, cacheKey, &stale)
	if err != nil {
		core.logger.WithError(err).Warn("stale cache read failed")
	} else if hit {
		stale.IsStale = true
		core.logger.WithFields(map[string]interface{}{
			"source":     stale.Source,
			"fetched_at": stale.FetchedAt,
		}).Warn("all providers failed, serving stale cached data")
		return &stale, nil
	}

	return nil, utils.WrapAppError(utils.CodeAllProvidersFailed,
		fmt.Sprintf("all providers failed for %s", core.dataType), attemptErrs.ErrorOrNil())
}

// providerFault reports whether an error should count against the provider's
// breaker. Missing data and rejected requests say the provider answered, not
// that it is unhealthy.
func providerFault(err error) bool {
	switch utils.CodeOf(err) {
	case utils.CodeNotFound, utils.CodeValidation:
		return false
	default:
		return true
	}
}

// PriceChain serves asset quotes with cache-first fallback semantics.
type PriceChain struct {
	core      *chainCore
	providers []providers.PriceProvider
}

// NewPriceChain builds the price chain with providers in priority order.
func NewPriceChain(chain []providers.PriceProvider, cache *CacheStore, breakers *BreakerRegistry, retrier *RetryExecutor, logger logging.Logger, cfg config.ProviderChainConfig) *PriceChain {
	return &PriceChain{
		core:      newChainCore(models.DataTypePrices, cache, breakers, retrier, logger, cfg.CacheTTL),
		providers: chain,
	}
}

// FetchPrices resolves quotes for the given symbols.
func (c *PriceChain) FetchPrices(ctx context.Context, symbols []string, opts FetchOptions) (*FetchResult[models.AssetPrice], error) {
	attempts := make([]chainAttempt[models.AssetPrice], 0, len(c.providers))
	for _, p := range c.providers {
		provider := p
		attempts = append(attempts, chainAttempt[models.AssetPrice]{
			name: provider.Name(),
			fetch: func(ctx context.Context) ([]models.AssetPrice, error) {
				return provider.FetchPrices(ctx, symbols)
			},
		})
	}

	result, err := fetchThroughChain(ctx, c.core, priceCacheKey(symbols), opts, attempts)
	if err != nil {
		return nil, err
	}
	if result.IsStale {
		for i := range result.Items {
			result.Items[i].IsStale = true
		}
	}
	return result, nil
}

// RateChain serves exchange rates and persists every live fetch into the rate
// store so the converter can resolve historical lookups.
type RateChain struct {
	core      *chainCore
	providers []providers.RateProvider
	rateStore *RateStore
}

// NewRateChain builds the rate chain with providers in priority order.
func NewRateChain(chain []providers.RateProvider, cache *CacheStore, breakers *BreakerRegistry, retrier *RetryExecutor, rateStore *RateStore, logger logging.Logger, cfg config.ProviderChainConfig) *RateChain {
	return &RateChain{
		core:      newChainCore(models.DataTypeRates, cache, breakers, retrier, logger, cfg.CacheTTL),
		providers: chain,
		rateStore: rateStore,
	}
}

// FetchRates resolves base→target rates for the given target currencies.
func (c *RateChain) FetchRates(ctx context.Context, base string, targets []string, opts FetchOptions) (*FetchResult[models.ExchangeRate], error) {
	attempts := make([]chainAttempt[models.ExchangeRate], 0, len(c.providers))
	for _, p := range c.providers {
		provider := p
		attempts = append(attempts, chainAttempt[models.ExchangeRate]{
			name: provider.Name(),
			fetch: func(ctx context.Context) ([]models.ExchangeRate, error) {
				return provider.FetchRates(ctx, base, targets)
			},
		})
	}

	result, err := fetchThroughChain(ctx, c.core, rateCacheKey(base, targets), opts, attempts)
	if err != nil {
		return nil, err
	}
	if result.Source != SourceCache && !result.IsStale {
		for _, rate := range result.Items {
			if storeErr := c.rateStore.Store(ctx, rate); storeErr != nil {
				c.core.logger.WithError(storeErr).WithFields(map[string]interface{}{
					"base":   rate.Base,
					"target": rate.Target,
				}).Warn("rate store write failed")
			}
		}
	}
	return result, nil
}

// FundamentalsChain serves per-symbol valuation figures.
type FundamentalsChain struct {
	core      *chainCore
	providers []providers.FundamentalsProvider
}

// NewFundamentalsChain builds the fundamentals chain with providers in priority order.
func NewFundamentalsChain(chain []providers.FundamentalsProvider, cache *CacheStore, breakers *BreakerRegistry, retrier *RetryExecutor, logger logging.Logger, cfg config.ProviderChainConfig) *FundamentalsChain {
	return &FundamentalsChain{
		core:      newChainCore(models.DataTypeFundamentals, cache, breakers, retrier, logger, cfg.CacheTTL),
		providers: chain,
	}
}

// FetchFundamentals resolves valuation figures for the given symbols.
func (c *FundamentalsChain) FetchFundamentals(ctx context.Context, symbols []string, opts FetchOptions) (*FetchResult[models.AssetFundamentals], error) {
	attempts := make([]chainAttempt[models.AssetFundamentals], 0, len(c.providers))
	for _, p := range c.providers {
		provider := p
		attempts = append(attempts, chainAttempt[models.AssetFundamentals]{
			name: provider.Name(),
			fetch: func(ctx context.Context) ([]models.AssetFundamentals, error) {
				return provider.FetchFundamentals(ctx, symbols)
			},
		})
	}

	result, err := fetchThroughChain(ctx, c.core, fundamentalsCacheKey(symbols), opts, attempts)
	if err != nil {
		return nil, err
	}
	if result.IsStale {
		for i := range result.Items {
			result.Items[i].IsStale = true
		}
	}
	return result, nil
}

func priceCacheKey(symbols []string) string {
	return "prices:" + strings.ToUpper(strings.Join(symbols, ","))
}

func rateCacheKey(base string, targets []string) string {
	return fmt.Sprintf("rates:%s:%s", strings.ToUpper(base), strings.ToUpper(strings.Join(targets, ",")))
}

func fundamentalsCacheKey(symbols []string) string {
	return "fundamentals:" + strings.ToUpper(strings.Join(symbols, ","))
}
