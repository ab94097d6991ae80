package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/models"
)

func decimalPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func TestComputeGapsMidpointAndSign(t *testing.T) {
	calc := NewGapCalculator()
	inputs := []models.AssetAllocationInput{
		{
			AssetID:              "under",
			CurrentAllocationPct: decimal.RequireFromString("10"),
			TargetMin:            decimalPtr("15"),
			TargetMax:            decimalPtr("25"),
		},
		{
			AssetID:              "over",
			CurrentAllocationPct: decimal.RequireFromString("30"),
			TargetMin:            decimalPtr("10"),
			TargetMax:            decimalPtr("20"),
		},
		{
			AssetID:              "exact",
			CurrentAllocationPct: decimal.RequireFromString("20"),
			TargetMin:            decimalPtr("15"),
			TargetMax:            decimalPtr("25"),
		},
	}

	results := calc.ComputeGaps(inputs)
	require.Len(t, results, 3)

	assert.Equal(t, "20", results[0].TargetMidpoint.String())
	assert.Equal(t, "10", results[0].AllocationGap.String())
	assert.False(t, results[0].IsOverAllocated)

	assert.Equal(t, "-15", results[1].AllocationGap.String())
	assert.True(t, results[1].IsOverAllocated)

	assert.True(t, results[2].AllocationGap.IsZero())
	assert.False(t, results[2].IsOverAllocated)
}

func TestComputeGapsSkipsUnclassifiedAssets(t *testing.T) {
	calc := NewGapCalculator()
	inputs := []models.AssetAllocationInput{
		{AssetID: "no-targets"},
		{AssetID: "min-only", TargetMin: decimalPtr("10")},
		{AssetID: "max-only", TargetMax: decimalPtr("20")},
		{
			AssetID:              "classified",
			CurrentAllocationPct: decimal.RequireFromString("5"),
			TargetMin:            decimalPtr("10"),
			TargetMax:            decimalPtr("20"),
		},
	}

	results := calc.ComputeGaps(inputs)
	require.Len(t, results, 1)
	assert.Equal(t, "classified", results[0].AssetID)
}

func TestComputeGapsEmptyInput(t *testing.T) {
	calc := NewGapCalculator()
	assert.Empty(t, calc.ComputeGaps(nil))
}
