package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecommendationItem is the per-asset slice of a recommendation.
type RecommendationItem struct {
	AssetID              string          `json:"asset_id"`
	Symbol               string          `json:"symbol"`
	Score                decimal.Decimal `json:"score"`
	CurrentAllocationPct decimal.Decimal `json:"current_allocation_pct"`
	TargetAllocationPct  decimal.Decimal `json:"target_allocation_pct"`
	AllocationGapPct     decimal.Decimal `json:"allocation_gap_pct"`
	RecommendedAmount    decimal.Decimal `json:"recommended_amount"`
	IsOverAllocated      bool            `json:"is_over_allocated"`
}

// RateSnapshot records one exchange rate as it was used during a generation,
// so the run can be replayed from historical data.
type RateSnapshot struct {
	Base     string          `json:"base"`
	Target   string          `json:"target"`
	Rate     decimal.Decimal `json:"rate"`
	RateDate time.Time       `json:"rate_date"`
	Source   string          `json:"source"`
	IsStale  bool            `json:"is_stale"`
	Inverted bool            `json:"inverted"`
}

// AuditTrail links a recommendation to the inputs that produced it.
type AuditTrail struct {
	CriteriaVersionID    string         `json:"criteria_version_id"`
	ScoringCorrelationID string         `json:"scoring_correlation_id"`
	RateSnapshots        []RateSnapshot `json:"rate_snapshots,omitempty"`
}

// Recommendation is one complete allocation proposal for a user's contribution.
// Immutable after creation; superseded, never mutated, by the next generation.
type Recommendation struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	CorrelationID   string               `json:"correlation_id"`
	PortfolioID     string               `json:"portfolio_id"`
	Contribution    decimal.Decimal      `json:"contribution"`
	Dividends       decimal.Decimal      `json:"dividends"`
	TotalInvestable decimal.Decimal      `json:"total_investable"`
	BaseCurrency    string               `json:"base_currency"`
	GeneratedAt     time.Time            `json:"generated_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
	Items           []RecommendationItem `json:"items"`
	AuditTrail      AuditTrail           `json:"audit_trail"`
}

// PortfolioSummary is the compact portfolio view embedded in the cached payload.
type PortfolioSummary struct {
	PortfolioID string          `json:"portfolio_id"`
	AssetCount  int             `json:"asset_count"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// CachedRecommendation is the payload stored in the recommendation cache.
// It carries the freshness timestamps of the data used so a cache hit never
// needs to re-touch the provider layer.
type CachedRecommendation struct {
	Recommendation *Recommendation      `json:"recommendation"`
	Portfolio      PortfolioSummary     `json:"portfolio"`
	DataFreshness  map[string]time.Time `json:"data_freshness,omitempty"`
	CachedAt       time.Time            `json:"cached_at"`
}
