package services

import (
	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/models"
)

// GapCalculator computes signed allocation gaps against target midpoints.
// Pure computation, no I/O.
type GapCalculator struct{}

// NewGapCalculator creates a gap calculator.
func NewGapCalculator() *GapCalculator {
	return &GapCalculator{}
}

// ComputeGaps returns one gap result per classified asset. Assets without
// both target bounds are unclassified and produce no result; they are never
// funded and never treated as over-allocated.
func (g *GapCalculator) ComputeGaps(inputs []models.AssetAllocationInput) []models.AllocationGapResult {
	results := make([]models.AllocationGapResult, 0, len(inputs))
	two := decimal.NewFromInt(2)
	for i := range inputs {
		input := &inputs[i]
		if !input.HasTarget() {
			continue
		}
		midpoint := input.TargetMin.Add(*input.TargetMax).Div(two)
		gap := midpoint.Sub(input.CurrentAllocationPct)
		results = append(results, models.AllocationGapResult{
			AssetID:         input.AssetID,
			TargetMidpoint:  midpoint,
			AllocationGap:   gap,
			IsOverAllocated: gap.IsNegative(),
		})
	}
	return results
}
