package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

func newBrapiTestClient(server *httptest.Server) *BrapiClient {
	return NewBrapiClient(config.ProviderEndpointConfig{
		Name:    "brapi",
		BaseURL: server.URL,
		APIKey:  "test-token",
		Timeout: 5 * time.Second,
	})
}

func TestBrapiFetchPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/PETR4,VALE3", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{"results":[
			{"symbol":"PETR4","regularMarketPrice":38.52,"currency":"BRL"},
			{"symbol":"VALE3","regularMarketPrice":61.07,"currency":"BRL"}
		]}`))
	}))
	defer server.Close()

	client := newBrapiTestClient(server)
	prices, err := client.FetchPrices(context.Background(), []string{"PETR4", "VALE3"})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "PETR4", prices[0].Symbol)
	assert.Equal(t, "38.52", prices[0].Price.String())
	assert.Equal(t, "BRL", prices[0].Currency)
	assert.Equal(t, "brapi", prices[0].Source)
}

func TestBrapiFetchPricesEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := newBrapiTestClient(server)
	_, err := client.FetchPrices(context.Background(), []string{"XXXX9"})
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}

func TestBrapiFetchRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/currency", r.URL.Path)
		assert.Equal(t, "USD-BRL", r.URL.Query().Get("currency"))
		_, _ = w.Write([]byte(`{"currency":[
			{"fromCurrency":"USD","toCurrency":"BRL","bidPrice":"5.0412","updatedAtDate":"2026-08-29 17:00:00"}
		]}`))
	}))
	defer server.Close()

	client := newBrapiTestClient(server)
	rates, err := client.FetchRates(context.Background(), "USD", []string{"BRL"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "USD", rates[0].Base)
	assert.Equal(t, "BRL", rates[0].Target)
	assert.Equal(t, "5.0412", rates[0].Rate.String())
	assert.Equal(t, 2026, rates[0].RateDate.Year())
}

func TestBrapiFetchRatesUnparsableBid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"currency":[
			{"fromCurrency":"USD","toCurrency":"BRL","bidPrice":"n/a"}
		]}`))
	}))
	defer server.Close()

	client := newBrapiTestClient(server)
	_, err := client.FetchRates(context.Background(), "USD", []string{"BRL"})
	require.Error(t, err)
	assert.Equal(t, utils.CodeProviderFailed, utils.CodeOf(err))
}

func TestBrapiFetchFundamentals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("fundamental"))
		_, _ = w.Write([]byte(`{"results":[
			{"symbol":"ITUB4","regularMarketPrice":33.10,"priceEarnings":9.4,"dividendYield":5.8,"priceToBook":1.9}
		]}`))
	}))
	defer server.Close()

	client := newBrapiTestClient(server)
	fundamentals, err := client.FetchFundamentals(context.Background(), []string{"ITUB4"})
	require.NoError(t, err)
	require.Len(t, fundamentals, 1)
	assert.Equal(t, "ITUB4", fundamentals[0].Symbol)
	assert.Equal(t, "9.4", fundamentals[0].PriceEarnings.String())
	assert.Equal(t, "5.8", fundamentals[0].DividendYield.String())
	assert.Equal(t, "1.9", fundamentals[0].PriceBook.String())
}

func TestBrapiFundamentalsMissingFieldsDefaultToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"symbol":"KNRI11","regularMarketPrice":158.00}]}`))
	}))
	defer server.Close()

	client := newBrapiTestClient(server)
	fundamentals, err := client.FetchFundamentals(context.Background(), []string{"KNRI11"})
	require.NoError(t, err)
	require.Len(t, fundamentals, 1)
	assert.True(t, fundamentals[0].PriceEarnings.IsZero())
	assert.True(t, fundamentals[0].DividendYield.IsZero())
}
