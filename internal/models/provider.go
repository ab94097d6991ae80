package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DataType identifies the kind of market data a fallback chain serves.
type DataType string

const (
	DataTypePrices       DataType = "prices"
	DataTypeRates        DataType = "rates"
	DataTypeFundamentals DataType = "fundamentals"
)

// ProviderResult is one fetched or cached datum with provenance attached.
// Source is never empty for any datum that reaches a consumer.
type ProviderResult struct {
	Value     decimal.Decimal `json:"value"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
	IsStale   bool            `json:"is_stale"`
}

// AssetPrice is a normalized quote for a single symbol.
type AssetPrice struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
	IsStale   bool            `json:"is_stale"`
}

// ExchangeRate stores the conversion rate between two currencies.
// Records are immutable once stored; a new fetch creates a new record.
type ExchangeRate struct {
	Base      string          `json:"base"`
	Target    string          `json:"target"`
	Rate      decimal.Decimal `json:"rate"`
	RateDate  time.Time       `json:"rate_date"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
}

// AssetFundamentals holds per-symbol valuation figures used for scoring context.
type AssetFundamentals struct {
	Symbol        string          `json:"symbol"`
	PriceEarnings decimal.Decimal `json:"price_earnings"`
	DividendYield decimal.Decimal `json:"dividend_yield"`
	PriceBook     decimal.Decimal `json:"price_book"`
	Source        string          `json:"source"`
	FetchedAt     time.Time       `json:"fetched_at"`
	IsStale       bool            `json:"is_stale"`
}

// ConversionResult is the outcome of a currency conversion.
// The rate always originates from a previously stored ExchangeRate record.
type ConversionResult struct {
	Value       decimal.Decimal `json:"value"`
	Rate        decimal.Decimal `json:"rate"`
	RateDate    time.Time       `json:"rate_date"`
	Source      string          `json:"source"`
	IsStaleRate bool            `json:"is_stale_rate"`
	Inverted    bool            `json:"inverted"`
}
