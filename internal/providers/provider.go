package providers

import (
	"context"
	"fmt"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
)

// PriceProvider fetches normalized asset quotes.
type PriceProvider interface {
	// Name returns the provider identity used for breaker state and provenance.
	Name() string
	// FetchPrices returns one quote per requested symbol.
	FetchPrices(ctx context.Context, symbols []string) ([]models.AssetPrice, error)
}

// RateProvider fetches normalized exchange rates.
type RateProvider interface {
	Name() string
	// FetchRates returns base→target rates for each requested target currency.
	FetchRates(ctx context.Context, base string, targets []string) ([]models.ExchangeRate, error)
}

// FundamentalsProvider fetches normalized per-symbol valuation figures.
type FundamentalsProvider interface {
	Name() string
	FetchFundamentals(ctx context.Context, symbols []string) ([]models.AssetFundamentals, error)
}

// BuildPriceProvider constructs the price provider named in cfg.
func BuildPriceProvider(cfg config.ProviderEndpointConfig) (PriceProvider, error) {
	switch cfg.Name {
	case "brapi":
		return NewBrapiClient(cfg), nil
	case "hgfinance":
		return NewHGFinanceClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Name)
	}
}

// BuildRateProvider constructs the rate provider named in cfg.
func BuildRateProvider(cfg config.ProviderEndpointConfig) (RateProvider, error) {
	switch cfg.Name {
	case "awesomeapi":
		return NewAwesomeAPIClient(cfg), nil
	case "hgfinance":
		return NewHGFinanceClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown rate provider %q", cfg.Name)
	}
}

// BuildFundamentalsProvider constructs the fundamentals provider named in cfg.
func BuildFundamentalsProvider(cfg config.ProviderEndpointConfig) (FundamentalsProvider, error) {
	switch cfg.Name {
	case "brapi":
		return NewBrapiClient(cfg), nil
	case "hgfinance":
		return NewHGFinanceClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fundamentals provider %q", cfg.Name)
	}
}
