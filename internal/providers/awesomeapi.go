package providers

import (
	"context"
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

// AwesomeAPIClient fetches currency rates from the AwesomeAPI economia REST API.
type AwesomeAPIClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewAwesomeAPIClient creates an AwesomeAPI client from endpoint configuration.
func NewAwesomeAPIClient(cfg config.ProviderEndpointConfig) *AwesomeAPIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "awesomeapi"
	}
	return &AwesomeAPIClient{
		name:       name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identity.
func (c *AwesomeAPIClient) Name() string {
	return c.name
}

// awesomeQuote is one entry of the /last response, keyed by "USDBRL" style codes.
type awesomeQuote struct {
	Code       string `json:"code"`
	Codein     string `json:"codein"`
	Bid        string `json:"bid"`
	CreateDate string `json:"create_date"`
}

// FetchRates returns base→target rates for each requested target currency.
func (c *AwesomeAPIClient) FetchRates(ctx context.Context, base string, targets []string) ([]models.ExchangeRate, error) {
	pairs := make([]string, 0, len(targets))
	for _, target := range targets {
		pairs = append(pairs, fmt.Sprintf("%s-%s", strings.ToUpper(base), strings.ToUpper(target)))
	}

	var resp map[string]awesomeQuote
	endpoint := fmt.Sprintf("%s/last/%s", c.baseURL, url.PathEscape(strings.Join(pairs, ",")))
	if err := getJSON(ctx, c.httpClient, c.name, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, utils.NewAppErrorf(utils.CodeNotFound, "provider %s returned no rates for %v", c.name, pairs)
	}

	now := time.Now().UTC()
	rates := make([]models.ExchangeRate, 0, len(resp))
	for _, quote := range resp {
		rate, err := decimal.NewFromString(quote.Bid)
		if err != nil {
			return nil, utils.NewAppErrorf(utils.CodeProviderFailed,
				"provider %s returned unparsable rate %q for %s/%s", c.name, quote.Bid, quote.Code, quote.Codein)
		}
		rateDate := now
		if parsed, err := time.Parse("2006-01-02 15:04:05", quote.CreateDate); err == nil {
			rateDate = parsed.UTC()
		}
		rates = append(rates, models.ExchangeRate{
			Base:      strings.ToUpper(quote.Code),
			Target:    strings.ToUpper(quote.Codein),
			Rate:      rate,
			RateDate:  rateDate,
			FetchedAt: now,
			Source:    c.name,
		})
	}
	return rates, nil
}
