package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/models"
)

// PortfolioSnapshot is the holdings view the allocation engine works from.
type PortfolioSnapshot struct {
	PortfolioID string
	TotalValue  decimal.Decimal
	Assets      []models.AssetAllocationInput
}

// PortfolioService loads a user's holdings. Implemented by the portfolio
// subsystem; this package only consumes it.
type PortfolioService interface {
	// LoadAllocationInputs returns the holdings of the given portfolio.
	// A missing portfolio is a NOT_FOUND error.
	LoadAllocationInputs(ctx context.Context, userID, portfolioID string) (*PortfolioSnapshot, error)
}

// ScoringResult carries asset scores plus the identifiers the audit trail
// records so a generation can be traced back to its scoring run.
type ScoringResult struct {
	CriteriaVersionID string
	CorrelationID     string
	// Scores maps asset id to score on the 0..100 scale. Assets absent from
	// the map are unscored and never funded.
	Scores map[string]decimal.Decimal
}

// ScoringService scores assets against the user's active criteria. The
// scoring model is a black box to the allocation engine.
type ScoringService interface {
	ScoreAssets(ctx context.Context, userID string, assetIDs []string) (*ScoringResult, error)
}
