package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func newAwesomeTestClient(server *httptest.Server) *AwesomeAPIClient {
	return NewAwesomeAPIClient(config.ProviderEndpointConfig{
		Name:    "awesomeapi",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
}

func TestAwesomeAPIFetchRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/last/USD-BRL", r.URL.Path)
		_, _ = w.Write([]byte(`{"USDBRL":{"code":"USD","codein":"BRL","bid":"5.0412","create_date":"2026-08-29 17:05:33"}}`))
	}))
	defer server.Close()

	client := newAwesomeTestClient(server)
	rates, err := client.FetchRates(context.Background(), "usd", []string{"brl"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "USD", rates[0].Base)
	assert.Equal(t, "BRL", rates[0].Target)
	assert.Equal(t, "5.0412", rates[0].Rate.String())
	assert.Equal(t, time.August, rates[0].RateDate.Month())
	assert.Equal(t, "awesomeapi", rates[0].Source)
}

func TestAwesomeAPIFetchMultiplePairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"USDBRL":{"code":"USD","codein":"BRL","bid":"5.0412","create_date":"2026-08-29 17:05:33"},
			"USDEUR":{"code":"USD","codein":"EUR","bid":"0.8571","create_date":"2026-08-29 17:05:33"}
		}`))
	}))
	defer server.Close()

	client := newAwesomeTestClient(server)
	rates, err := client.FetchRates(context.Background(), "USD", []string{"BRL", "EUR"})
	require.NoError(t, err)
	assert.Len(t, rates, 2)
}

func TestAwesomeAPIEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newAwesomeTestClient(server)
	_, err := client.FetchRates(context.Background(), "USD", []string{"BRL"})
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}

func TestAwesomeAPIUnparsableBid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"USDBRL":{"code":"USD","codein":"BRL","bid":"","create_date":""}}`))
	}))
	defer server.Close()

	client := newAwesomeTestClient(server)
	_, err := client.FetchRates(context.Background(), "USD", []string{"BRL"})
	require.Error(t, err)
	assert.Equal(t, utils.CodeProviderFailed, utils.CodeOf(err))
}

func TestBuildProviders(t *testing.T) {
	price, err := BuildPriceProvider(config.ProviderEndpointConfig{Name: "brapi", BaseURL: "https://brapi.dev/api"})
	require.NoError(t, err)
	assert.Equal(t, "brapi", price.Name())

	rate, err := BuildRateProvider(config.ProviderEndpointConfig{Name: "awesomeapi", BaseURL: "https://economia.awesomeapi.com.br/json"})
	require.NoError(t, err)
	assert.Equal(t, "awesomeapi", rate.Name())

	fundamentals, err := BuildFundamentalsProvider(config.ProviderEndpointConfig{Name: "hgfinance", BaseURL: "https://api.hgbrasil.com/finance"})
	require.NoError(t, err)
	assert.Equal(t, "hgfinance", fundamentals.Name())

	_, err = BuildPriceProvider(config.ProviderEndpointConfig{Name: "unknown"})
	assert.Error(t, err)
}
