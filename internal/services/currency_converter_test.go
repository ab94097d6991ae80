package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/testutil"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

func newConverterFixture(t *testing.T) (*CurrencyConverter, *RateStore) {
	t.Helper()
	client, _ := testutil.NewTestRedis(t)
	logger := logging.NewStandardLogger("error", "test")
	rates := NewRateStore(client, logger, 30*24*time.Hour)
	return NewCurrencyConverter(rates, nil, logger, 24*time.Hour), rates
}

func storeRate(t *testing.T, rates *RateStore, base, target, rate string, fetchedAt time.Time) {
	t.Helper()
	require.NoError(t, rates.Store(context.Background(), models.ExchangeRate{
		Base:      base,
		Target:    target,
		Rate:      decimal.RequireFromString(rate),
		RateDate:  fetchedAt,
		FetchedAt: fetchedAt,
		Source:    "awesomeapi",
	}))
}

func TestConvertSameCurrency(t *testing.T) {
	converter, _ := newConverterFixture(t)

	result, err := converter.Convert(context.Background(), decimal.RequireFromString("123.456789"), "BRL", "BRL")
	require.NoError(t, err)
	assert.Equal(t, "123.4568", result.Value.StringFixed(4))
	assert.Equal(t, "1", result.Rate.String())
	assert.False(t, result.IsStaleRate)
	assert.False(t, result.Inverted)
}

func TestConvertDirectRate(t *testing.T) {
	converter, rates := newConverterFixture(t)
	storeRate(t, rates, "USD", "BRL", "5.04", time.Now().UTC())

	result, err := converter.Convert(context.Background(), decimal.RequireFromString("100"), "USD", "BRL")
	require.NoError(t, err)
	assert.Equal(t, "504.0000", result.Value.StringFixed(4))
	assert.Equal(t, "awesomeapi", result.Source)
	assert.False(t, result.Inverted)
	assert.False(t, result.IsStaleRate)
}

func TestConvertInverseFallback(t *testing.T) {
	converter, rates := newConverterFixture(t)
	storeRate(t, rates, "USD", "BRL", "5.00", time.Now().UTC())

	result, err := converter.Convert(context.Background(), decimal.RequireFromString("100"), "BRL", "USD")
	require.NoError(t, err)
	assert.Equal(t, "20.0000", result.Value.StringFixed(4))
	assert.True(t, result.Inverted)
	assert.Equal(t, "0.2", result.Rate.String())
}

func TestConvertRateNotFound(t *testing.T) {
	converter, _ := newConverterFixture(t)

	_, err := converter.Convert(context.Background(), decimal.RequireFromString("100"), "GBP", "JPY")
	require.Error(t, err)
	assert.Equal(t, utils.CodeRateNotFound, utils.CodeOf(err))
	assert.True(t, utils.IsRateNotFoundError(err))
}

func TestConvertStaleRateStillUsed(t *testing.T) {
	converter, rates := newConverterFixture(t)
	storeRate(t, rates, "USD", "BRL", "5.04", time.Now().UTC().Add(-48*time.Hour))

	result, err := converter.Convert(context.Background(), decimal.RequireFromString("10"), "USD", "BRL")
	require.NoError(t, err)
	assert.True(t, result.IsStaleRate)
	assert.Equal(t, "50.4000", result.Value.StringFixed(4))
}

func TestConvertRoundsHalfUpOnce(t *testing.T) {
	converter, rates := newConverterFixture(t)
	// 3.00005 rounds up at the fourth decimal place.
	storeRate(t, rates, "USD", "BRL", "3.00005", time.Now().UTC())

	result, err := converter.Convert(context.Background(), decimal.RequireFromString("1"), "USD", "BRL")
	require.NoError(t, err)
	assert.Equal(t, "3.0001", result.Value.StringFixed(4))
}

func TestConvertEmitsAuditEvent(t *testing.T) {
	client, _ := testutil.NewTestRedis(t)
	logger := logging.NewStandardLogger("error", "test")
	rates := NewRateStore(client, logger, time.Hour)
	emitter := NewAuditEmitter(client, logger, config.AuditConfig{BufferSize: 4, Retention: time.Hour})
	converter := NewCurrencyConverter(rates, emitter, logger, 24*time.Hour)

	storeRate(t, rates, "USD", "BRL", "5.04", time.Now().UTC())
	_, err := converter.Convert(context.Background(), decimal.RequireFromString("100"), "USD", "BRL")
	require.NoError(t, err)
	emitter.Close()

	assert.Equal(t, uint64(1), emitter.Persisted())
}

func TestConvertAuditEventCarriesCorrelationID(t *testing.T) {
	client, _ := testutil.NewTestRedis(t)
	logger := logging.NewStandardLogger("error", "test")
	rates := NewRateStore(client, logger, time.Hour)
	emitter := NewAuditEmitter(client, logger, config.AuditConfig{BufferSize: 4, Retention: time.Hour})
	converter := NewCurrencyConverter(rates, emitter, logger, 24*time.Hour)

	storeRate(t, rates, "USD", "BRL", "5.04", time.Now().UTC())
	ctx := ContextWithCorrelationID(context.Background(), "run-42")
	_, err := converter.Convert(ctx, decimal.RequireFromString("100"), "USD", "BRL")
	require.NoError(t, err)
	emitter.Close()

	// The event lands on the run's own trail, not a shared key.
	entries, err := client.LRange(context.Background(), "audit:run-42", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var event AuditEvent
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &event))
	assert.Equal(t, "run-42", event.CorrelationID)
	assert.Equal(t, AuditEventConversion, event.Type)
}

func TestConvertEmptyCurrencyRejected(t *testing.T) {
	converter, _ := newConverterFixture(t)

	_, err := converter.Convert(context.Background(), decimal.NewFromInt(1), "", "BRL")
	require.Error(t, err)
	assert.Equal(t, utils.CodeValidation, utils.CodeOf(err))
}
