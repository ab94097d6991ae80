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

// HGFinanceClient fetches quotes, currency rates and fundamentals from the
// HG Brasil Finance REST API. It serves as the fallback provider on every
// chain.
type HGFinanceClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHGFinanceClient creates an HG Finance client from endpoint configuration.
func NewHGFinanceClient(cfg config.ProviderEndpointConfig) *HGFinanceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "hgfinance"
	}
	return &HGFinanceClient{
		name:       name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identity.
func (c *HGFinanceClient) Name() string {
	return c.name
}

type hgStockQuote struct {
	Price         json.Number `json:"price"`
	Currency      string      `json:"currency"`
	PriceEarnings json.Number `json:"price_earnings"`
	DividendYield json.Number `json:"dividend_yield"`
	PriceBook     json.Number `json:"price_book"`
	UpdatedAt     string      `json:"updated_at"`
}

type hgCurrencyQuote struct {
	Buy json.Number `json:"buy"`
}

type hgFinanceResponse struct {
	Results struct {
		Stocks     map[string]hgStockQuote    `json:"stocks"`
		Currencies map[string]json.RawMessage `json:"currencies"`
	} `json:"results"`
}

// upperSymbols normalizes ticker casing; the API keys its stock results by
// uppercase symbol.
func upperSymbols(symbols []string) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// FetchPrices returns one normalized quote per requested symbol.
func (c *HGFinanceClient) FetchPrices(ctx context.Context, symbols []string) ([]models.AssetPrice, error) {
	resp, err := c.query(ctx, "symbol="+url.QueryEscape(strings.Join(upperSymbols(symbols), ",")))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	prices := make([]models.AssetPrice, 0, len(symbols))
	for _, symbol := range symbols {
		quote, ok := resp.Results.Stocks[strings.ToUpper(symbol)]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(quote.Price.String())
		if err != nil {
			return nil, utils.NewAppErrorf(utils.CodeProviderFailed,
				"provider %s returned unparsable price %q for %s", c.name, quote.Price, symbol)
		}
		currency := quote.Currency
		if currency == "" {
			currency = "BRL"
		}
		prices = append(prices, models.AssetPrice{
			Symbol:    strings.ToUpper(symbol),
			Price:     price,
			Currency:  currency,
			Source:    c.name,
			FetchedAt: now,
		})
	}
	if len(prices) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no quotes for %v", c.name, symbols)
	}
	return prices, nil
}

// FetchRates returns base→target rates. HG quotes every currency against
// BRL (its "buy" field), so cross rates are derived from the BRL legs.
func (c *HGFinanceClient) FetchRates(ctx context.Context, base string, targets []string) ([]models.ExchangeRate, error) {
	resp, err := c.query(ctx, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rates := make([]models.ExchangeRate, 0, len(targets))
	for _, target := range targets {
		rate, ok := c.crossRate(resp, strings.ToUpper(base), strings.ToUpper(target))
		if !ok {
			continue
		}
		rates = append(rates, models.ExchangeRate{
			Base:      strings.ToUpper(base),
			Target:    strings.ToUpper(target),
			Rate:      rate,
			RateDate:  now,
			FetchedAt: now,
			Source:    c.name,
		})
	}
	if len(rates) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no rates for %s→%v", c.name, base, targets)
	}
	return rates, nil
}

// crossRate derives base→target from HG's per-currency BRL quotes.
func (c *HGFinanceClient) crossRate(resp *hgFinanceResponse, base, target string) (decimal.Decimal, bool) {
	baseBRL, baseOK := c.currencyBRL(resp, base)
	targetBRL, targetOK := c.currencyBRL(resp, target)

	switch {
	case base == "BRL" && targetOK:
		// BRL→X is the inverse of X's BRL quote
		return decimal.NewFromInt(1).Div(targetBRL), true
	case target == "BRL" && baseOK:
		return baseBRL, true
	case baseOK && targetOK:
		return baseBRL.Div(targetBRL), true
	default:
		return decimal.Zero, false
	}
}

// currencyBRL reads the BRL buy quote for a currency code.
func (c *HGFinanceClient) currencyBRL(resp *hgFinanceResponse, code string) (decimal.Decimal, bool) {
	raw, ok := resp.Results.Currencies[code]
	if !ok {
		return decimal.Zero, false
	}
	var quote hgCurrencyQuote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(quote.Buy.String())
	if err != nil || rate.IsZero() {
		return decimal.Zero, false
	}
	return rate, true
}

// FetchFundamentals returns per-symbol valuation figures from the stock quotes.
func (c *HGFinanceClient) FetchFundamentals(ctx context.Context, symbols []string) ([]models.AssetFundamentals, error) {
	resp, err := c.query(ctx, "symbol="+url.QueryEscape(strings.Join(upperSymbols(symbols), ",")))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fundamentals := make([]models.AssetFundamentals, 0, len(symbols))
	for _, symbol := range symbols {
		quote, ok := resp.Results.Stocks[strings.ToUpper(symbol)]
		if !ok {
			continue
		}
		fundamentals = append(fundamentals, models.AssetFundamentals{
			Symbol:        strings.ToUpper(symbol),
			PriceEarnings: decimalFromNumber(quote.PriceEarnings),
			DividendYield: decimalFromNumber(quote.DividendYield),
			PriceBook:     decimalFromNumber(quote.PriceBook),
			Source:        c.name,
			FetchedAt:     now,
		})
	}
	if len(fundamentals) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no fundamentals for %v", c.name, symbols)
	}
	return fundamentals, nil
}

// query performs a GET against the HG Finance endpoint with the API key attached.
func (c *HGFinanceClient) query(ctx context.Context, params string) (*hgFinanceResponse, error) {
	endpoint := fmt.Sprintf("%s?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	if params != "" {
		endpoint += "&" + params
	}
	var resp hgFinanceResponse
	if err := getJSON(ctx, c.httpClient, c.name, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
