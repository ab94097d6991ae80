package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// conversionScale is the decimal precision of conversion results.
const conversionScale = 4

// CurrencyConverter converts monetary values using stored exchange rates.
// It never calls a provider: rate acquisition is the rate chain's job, and a
// missing rate in both directions is a RATE_NOT_FOUND error, not a fetch
// trigger.
type CurrencyConverter struct {
	rates          *RateStore
	audit          *AuditEmitter
	logger         logging.Logger
	staleThreshold time.Duration

	// now is injectable for staleness tests.
	now func() time.Time
}

// NewCurrencyConverter creates a converter reading from the given rate store.
// Rates older than staleThreshold are still used but flagged stale.
func NewCurrencyConverter(rates *RateStore, audit *AuditEmitter, logger logging.Logger, staleThreshold time.Duration) *CurrencyConverter {
	if staleThreshold <= 0 {
		staleThreshold = 24 * time.Hour
	}
	return &CurrencyConverter{
		rates:          rates,
		audit:          audit,
		logger:         logger.WithComponent("currency_converter"),
		staleThreshold: staleThreshold,
		now:            time.Now,
	}
}

// Convert converts value from one currency to another. The result carries the
// rate used, its provenance, and whether it was derived by inversion. Rounding
// to 4 decimal places happens once, on the final value.
func (c *CurrencyConverter) Convert(ctx context.Context, value decimal.Decimal, from, to string) (*models.ConversionResult, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return nil, utils.NewAppError(utils.CodeValidation, "currency codes must not be empty")
	}

	if from == to {
		return &models.ConversionResult{
			Value:    value.Round(conversionScale),
			Rate:     decimal.NewFromInt(1),
			RateDate: c.now().UTC(),
		}, nil
	}

	rate, inverted, err := c.lookupRate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	effectiveRate := rate.Rate
	if inverted {
		effectiveRate = decimal.NewFromInt(1).Div(rate.Rate)
		c.logger.WithFields(map[string]interface{}{
			"from":        from,
			"to":          to,
			"stored_pair": rate.Base + "/" + rate.Target,
		}).Info("no direct rate, using inverse")
	}

	result := &models.ConversionResult{
		Value:       value.Mul(effectiveRate).Round(conversionScale),
		Rate:        effectiveRate,
		RateDate:    rate.RateDate,
		Source:      rate.Source,
		IsStaleRate: c.now().UTC().Sub(rate.FetchedAt) > c.staleThreshold,
		Inverted:    inverted,
	}
	if result.IsStaleRate {
		c.logger.WithFields(map[string]interface{}{
			"from":       from,
			"to":         to,
			"fetched_at": rate.FetchedAt,
		}).Warn("using stale exchange rate")
	}

	if c.audit != nil {
		c.audit.Emit(AuditEvent{
			Type:          AuditEventConversion,
			CorrelationID: CorrelationIDFromContext(ctx),
			Details: map[string]interface{}{
				"from":       from,
				"to":         to,
				"rate":       effectiveRate.String(),
				"rate_date":  rate.RateDate,
				"source":     rate.Source,
				"inverted":   inverted,
				"stale_rate": result.IsStaleRate,
			},
		})
	}
	return result, nil
}

// lookupRate resolves from→to directly, then via the reverse pair.
func (c *CurrencyConverter) lookupRate(ctx context.Context, from, to string) (*models.ExchangeRate, bool, error) {
	direct, found, err := c.rates.Get(ctx, from, to)
	if err != nil {
		return nil, false, err
	}
	if found {
		return direct, false, nil
	}

	reverse, found, err := c.rates.Get(ctx, to, from)
	if err != nil {
		return nil, false, err
	}
	if found {
		return reverse, true, nil
	}

	return nil, false, utils.NewAppErrorf(utils.CodeRateNotFound,
		"no exchange rate stored for %s/%s in either direction", from, to)
}
