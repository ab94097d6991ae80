package models

import "github.com/shopspring/decimal"

// AssetAllocationInput is the read-only view of one holding the engine works from.
// It is produced by the portfolio and scoring collaborators.
type AssetAllocationInput struct {
	AssetID string `json:"asset_id"`
	Symbol  string `json:"symbol"`
	// Currency is the holding's native currency.
	Currency string `json:"currency"`
	// CurrentValue is the holding's value in its native currency.
	CurrentValue decimal.Decimal `json:"current_value"`
	// CurrentValueBase is CurrentValue converted into the portfolio base
	// currency. Filled during input preparation.
	CurrentValueBase     decimal.Decimal  `json:"current_value_base"`
	CurrentAllocationPct decimal.Decimal  `json:"current_allocation_pct"`
	TargetMin            *decimal.Decimal `json:"target_min,omitempty"`
	TargetMax            *decimal.Decimal `json:"target_max,omitempty"`
	SubClass             string           `json:"sub_class"`
	Score                decimal.Decimal  `json:"score"`
	HasScore             bool             `json:"has_score"`
}

// HasTarget reports whether both target bounds are configured.
// Assets without a full target range are unclassified and never funded.
func (a *AssetAllocationInput) HasTarget() bool {
	return a.TargetMin != nil && a.TargetMax != nil
}

// AllocationGapResult is the signed distance between an asset's target midpoint
// and its current allocation. Derived, recomputed on every run.
type AllocationGapResult struct {
	AssetID         string          `json:"asset_id"`
	TargetMidpoint  decimal.Decimal `json:"target_midpoint"`
	AllocationGap   decimal.Decimal `json:"allocation_gap_pct"`
	IsOverAllocated bool            `json:"is_over_allocated"`
}

// AllocationConstraints holds the per-subclass distribution limits applied
// during the redistribution step.
type AllocationConstraints struct {
	// MinAllocationValue drops any computed share below this amount.
	MinAllocationValue decimal.Decimal `json:"min_allocation_value"`
	// MaxAssetsPerClass caps how many assets of one subclass may be funded.
	// Zero means unlimited.
	MaxAssetsPerClass int `json:"max_assets_per_class"`
}
