package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// BrapiClient fetches quotes, fundamentals and currency rates from the
// brapi.dev REST API.
type BrapiClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBrapiClient creates a brapi client from endpoint configuration.
func NewBrapiClient(cfg config.ProviderEndpointConfig) *BrapiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "brapi"
	}
	return &BrapiClient{
		name:       name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identity.
func (c *BrapiClient) Name() string {
	return c.name
}

type brapiQuoteResponse struct {
	Results []struct {
		Symbol             string      `json:"symbol"`
		RegularMarketPrice json.Number `json:"regularMarketPrice"`
		Currency           string      `json:"currency"`
		PriceEarnings      json.Number `json:"priceEarnings"`
		DividendYield      json.Number `json:"dividendYield"`
		PriceToBook        json.Number `json:"priceToBook"`
	} `json:"results"`
}

type brapiCurrencyResponse struct {
	Currency []struct {
		FromCurrency  string `json:"fromCurrency"`
		ToCurrency    string `json:"toCurrency"`
		BidPrice      string `json:"bidPrice"`
		UpdatedAtDate string `json:"updatedAtDate"`
	} `json:"currency"`
}

// FetchPrices returns one normalized quote per requested symbol.
func (c *BrapiClient) FetchPrices(ctx context.Context, symbols []string) ([]models.AssetPrice, error) {
	var resp brapiQuoteResponse
	endpoint := fmt.Sprintf("%s/quote/%s?token=%s", c.baseURL,
		url.PathEscape(strings.Join(symbols, ",")), url.QueryEscape(c.apiKey))
	if err := getJSON(ctx, c.httpClient, c.name, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no quotes for %v", c.name, symbols)
	}

	now := time.Now().UTC()
	prices := make([]models.AssetPrice, 0, len(resp.Results))
	for _, r := range resp.Results {
		price, err := decimal.NewFromString(r.RegularMarketPrice.String())
		if err != nil {
			return nil, utils.NewAppErrorf(utils.CodeProviderFailed,
				"provider %s returned unparsable price %q for %s", c.name, r.RegularMarketPrice, r.Symbol)
		}
		currency := r.Currency
		if currency == "" {
			currency = "BRL"
		}
		prices = append(prices, models.AssetPrice{
			Symbol:    r.Symbol,
			Price:     price,
			Currency:  currency,
			Source:    c.name,
			FetchedAt: now,
		})
	}
	return prices, nil
}

// FetchRates returns base→target rates from the currency endpoint.
func (c *BrapiClient) FetchRates(ctx context.Context, base string, targets []string) ([]models.ExchangeRate, error) {
	pairs := make([]string, 0, len(targets))
	for _, target := range targets {
		pairs = append(pairs, fmt.Sprintf("%s-%s", strings.ToUpper(base), strings.ToUpper(target)))
	}

	var resp brapiCurrencyResponse
	endpoint := fmt.Sprintf("%s/v2/currency?currency=%s&token=%s", c.baseURL,
		url.QueryEscape(strings.Join(pairs, ",")), url.QueryEscape(c.apiKey))
	if err := getJSON(ctx, c.httpClient, c.name, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Currency) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no rates for %v", c.name, pairs)
	}

	now := time.Now().UTC()
	rates := make([]models.ExchangeRate, 0, len(resp.Currency))
	for _, r := range resp.Currency {
		rate, err := decimal.NewFromString(r.BidPrice)
		if err != nil {
			return nil, utils.NewAppErrorf(utils.CodeProviderFailed,
				"provider %s returned unparsable rate %q for %s/%s", c.name, r.BidPrice, r.FromCurrency, r.ToCurrency)
		}
		rateDate := now
		if parsed, err := time.Parse("2006-01-02 15:04:05", r.UpdatedAtDate); err == nil {
			rateDate = parsed.UTC()
		}
		rates = append(rates, models.ExchangeRate{
			Base:      strings.ToUpper(r.FromCurrency),
			Target:    strings.ToUpper(r.ToCurrency),
			Rate:      rate,
			RateDate:  rateDate,
			FetchedAt: now,
			Source:    c.name,
		})
	}
	return rates, nil
}

// FetchFundamentals returns per-symbol valuation figures from the quote
// endpoint with fundamental data enabled.
func (c *BrapiClient) FetchFundamentals(ctx context.Context, symbols []string) ([]models.AssetFundamentals, error) {
	var resp brapiQuoteResponse
	endpoint := fmt.Sprintf("%s/quote/%s?fundamental=true&token=%s", c.baseURL,
		url.PathEscape(strings.Join(symbols, ",")), url.QueryEscape(c.apiKey))
	if err := getJSON(ctx, c.httpClient, c.name, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no fundamentals for %v", c.name, symbols)
	}

	now := time.Now().UTC()
	fundamentals := make([]models.AssetFundamentals, 0, len(resp.Results))
	for _, r := range resp.Results {
		fundamentals = append(fundamentals, models.AssetFundamentals{
			Symbol:        r.Symbol,
			PriceEarnings: decimalFromNumber(r.PriceEarnings),
			DividendYield: decimalFromNumber(r.DividendYield),
			PriceBook:     decimalFromNumber(r.PriceToBook),
			Source:        c.name,
			FetchedAt:     now,
		})
	}
	return fundamentals, nil
}

// decimalFromNumber parses a JSON number, defaulting to zero when the field
// is absent or malformed. Fundamentals fields are optional per symbol.
func decimalFromNumber(n json.Number) decimal.Decimal {
	if n.String() == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
