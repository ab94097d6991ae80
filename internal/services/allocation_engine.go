package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/telemetry"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// amountScale is the decimal precision of recommended amounts.
const amountScale = 2

var oneHundred = decimal.NewFromInt(100)

// GenerateParams are the caller-supplied inputs of one generation.
type GenerateParams struct {
	PortfolioID  string
	Contribution decimal.Decimal
	Dividends    decimal.Decimal
	BaseCurrency string
}

// AllocationEngine distributes a contribution across under-allocated holdings
// by weighted priority. All arithmetic is decimal; rounding happens once, on
// the final amounts.
type AllocationEngine struct {
	portfolio   PortfolioService
	scoring     ScoringService
	converter   *CurrencyConverter
	gaps        *GapCalculator
	recCache    *RecommendationCache
	audit       *AuditEmitter
	logger      logging.Logger
	constraints models.AllocationConstraints
	ttl         time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewAllocationEngine wires the engine with its collaborators.
func NewAllocationEngine(
	portfolio PortfolioService,
	scoring ScoringService,
	converter *CurrencyConverter,
	recCache *RecommendationCache,
	audit *AuditEmitter,
	logger logging.Logger,
	constraints models.AllocationConstraints,
	ttl time.Duration,
) *AllocationEngine {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AllocationEngine{
		portfolio:   portfolio,
		scoring:     scoring,
		converter:   converter,
		gaps:        NewGapCalculator(),
		recCache:    recCache,
		audit:       audit,
		logger:      logger.WithComponent("allocation_engine"),
		constraints: constraints,
		ttl:         ttl,
		now:         time.Now,
	}
}

// allocationCandidate is one holding moving through the distribution steps.
type allocationCandidate struct {
	input    *models.AssetAllocationInput
	gap      *models.AllocationGapResult
	priority decimal.Decimal
	share    decimal.Decimal
	funded   bool
}

// Generate produces a recommendation for the user's contribution. A balanced
// portfolio (no under-allocated scored asset) is a valid all-zero result, not
// an error. Upstream failures propagate with their own error codes.
func (e *AllocationEngine) Generate(ctx context.Context, userID string, params GenerateParams) (*models.Recommendation, error) {
	ctx, span := telemetry.StartSpan(ctx, "recommendation.generate", map[string]string{
		"user_id":      userID,
		"portfolio_id": params.PortfolioID,
	})
	defer span.End()

	rec, err := e.generate(ctx, userID, params)
	telemetry.RecordError(span, err)
	return rec, err
}

func (e *AllocationEngine) generate(ctx context.Context, userID string, params GenerateParams) (*models.Recommendation, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	// One correlation id per run, assigned up front so every downstream audit
	// event (conversions included) lands on the same trail.
	correlationID := uuid.New().String()
	ctx = ContextWithCorrelationID(ctx, correlationID)
	totalInvestable := params.Contribution.Add(params.Dividends)
	logger := e.logger.WithUserID(userID).WithOperation("generate")

	snapshot, err := e.portfolio.LoadAllocationInputs(ctx, userID, params.PortfolioID)
	if err != nil {
		return nil, err
	}

	assetIDs := make([]string, 0, len(snapshot.Assets))
	for i := range snapshot.Assets {
		assetIDs = append(assetIDs, snapshot.Assets[i].AssetID)
	}
	scores, err := e.scoring.ScoreAssets(ctx, userID, assetIDs)
	if err != nil {
		return nil, err
	}

	inputs := make([]models.AssetAllocationInput, len(snapshot.Assets))
	copy(inputs, snapshot.Assets)
	for i := range inputs {
		if score, ok := scores.Scores[inputs[i].AssetID]; ok {
			inputs[i].Score = score
			inputs[i].HasScore = true
		}
	}

	rateSnapshots, err := e.prepareBaseValues(ctx, inputs, params.BaseCurrency)
	if err != nil {
		return nil, err
	}

	candidates := e.rankCandidates(inputs)
	e.distribute(candidates, totalInvestable, logger)

	items, err := assembleItems(candidates, totalInvestable)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	rec := &models.Recommendation{
		ID:              uuid.New().String(),
		UserID:          userID,
		CorrelationID:   correlationID,
		PortfolioID:     params.PortfolioID,
		Contribution:    params.Contribution,
		Dividends:       params.Dividends,
		TotalInvestable: totalInvestable,
		BaseCurrency:    params.BaseCurrency,
		GeneratedAt:     now,
		ExpiresAt:       now.Add(e.ttl),
		Items:           items,
		AuditTrail: models.AuditTrail{
			CriteriaVersionID:    scores.CriteriaVersionID,
			ScoringCorrelationID: scores.CorrelationID,
			RateSnapshots:        rateSnapshots,
		},
	}

	if e.recCache != nil {
		cached := &models.CachedRecommendation{
			Recommendation: rec,
			Portfolio: models.PortfolioSummary{
				PortfolioID: snapshot.PortfolioID,
				AssetCount:  len(snapshot.Assets),
				TotalValue:  snapshot.TotalValue,
			},
			DataFreshness: map[string]time.Time{"generated": now},
			CachedAt:      now,
		}
		if cacheErr := e.recCache.Set(ctx, userID, cached); cacheErr != nil {
			logger.WithError(cacheErr).Warn("failed to cache recommendation")
		}
	}

	if e.audit != nil {
		e.audit.Emit(AuditEvent{
			Type:          AuditEventGeneration,
			CorrelationID: rec.CorrelationID,
			UserID:        userID,
			Details: map[string]interface{}{
				"recommendation_id": rec.ID,
				"portfolio_id":      params.PortfolioID,
				"total_investable":  totalInvestable.String(),
				"item_count":        len(items),
			},
		})
	}

	logger.WithCorrelationID(rec.CorrelationID).LogBusinessEvent("recommendation_generated", map[string]interface{}{
		"recommendation_id": rec.ID,
		"total_investable":  totalInvestable.String(),
		"item_count":        len(items),
	})
	return rec, nil
}

func validateParams(params GenerateParams) error {
	if !params.Contribution.IsPositive() {
		return utils.NewAppError(utils.CodeValidation, "contribution must be greater than zero")
	}
	if params.Dividends.IsNegative() {
		return utils.NewAppError(utils.CodeValidation, "dividends must not be negative")
	}
	if !hasMaxScale(params.Contribution, amountScale) {
		return utils.NewAppError(utils.CodeValidation, "contribution must have at most 2 decimal places")
	}
	if !hasMaxScale(params.Dividends, amountScale) {
		return utils.NewAppError(utils.CodeValidation, "dividends must have at most 2 decimal places")
	}
	if params.PortfolioID == "" {
		return utils.NewAppError(utils.CodeValidation, "portfolio id is required")
	}
	return nil
}

func hasMaxScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Round(scale))
}

// prepareBaseValues converts each holding's native value into the base
// currency and records one rate snapshot per currency pair used.
func (e *AllocationEngine) prepareBaseValues(ctx context.Context, inputs []models.AssetAllocationInput, baseCurrency string) ([]models.RateSnapshot, error) {
	var snapshots []models.RateSnapshot
	seen := make(map[string]bool)

	for i := range inputs {
		input := &inputs[i]
		if input.Currency == "" || input.Currency == baseCurrency {
			input.CurrentValueBase = input.CurrentValue
			continue
		}
		conv, err := e.converter.Convert(ctx, input.CurrentValue, input.Currency, baseCurrency)
		if err != nil {
			return nil, err
		}
		input.CurrentValueBase = conv.Value

		pair := input.Currency + "/" + baseCurrency
		if !seen[pair] {
			seen[pair] = true
			snapshots = append(snapshots, models.RateSnapshot{
				Base:     input.Currency,
				Target:   baseCurrency,
				Rate:     conv.Rate,
				RateDate: conv.RateDate,
				Source:   conv.Source,
				IsStale:  conv.IsStaleRate,
				Inverted: conv.Inverted,
			})
		}
	}
	return snapshots, nil
}

// rankCandidates computes gaps and weighted priorities. Over-allocated,
// unclassified, and unscored assets carry zero priority and are never funded.
func (e *AllocationEngine) rankCandidates(inputs []models.AssetAllocationInput) []*allocationCandidate {
	gapResults := e.gaps.ComputeGaps(inputs)
	gapsByAsset := make(map[string]*models.AllocationGapResult, len(gapResults))
	for i := range gapResults {
		gapsByAsset[gapResults[i].AssetID] = &gapResults[i]
	}

	candidates := make([]*allocationCandidate, 0, len(inputs))
	for i := range inputs {
		input := &inputs[i]
		candidate := &allocationCandidate{
			input:    input,
			gap:      gapsByAsset[input.AssetID],
			priority: decimal.Zero,
		}
		if candidate.gap != nil && candidate.gap.AllocationGap.IsPositive() && input.HasScore {
			candidate.priority = candidate.gap.AllocationGap.Mul(input.Score.Div(oneHundred))
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// distribute assigns proportional shares and applies the minimum-value and
// per-class count constraints. Dropped shares are redistributed among the
// survivors; iteration is capped at the eligible-asset count, which bounds
// the passes since every pass removes at least one asset or terminates.
func (e *AllocationEngine) distribute(candidates []*allocationCandidate, totalInvestable decimal.Decimal, logger logging.Logger) {
	eligible := make([]*allocationCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.priority.IsPositive() {
			c.funded = true
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		logger.Info("balanced portfolio, no under-allocated scored assets")
		return
	}

	e.applyClassLimits(eligible)

	for pass := 0; pass < len(eligible); pass++ {
		survivors := funded(eligible)
		if len(survivors) == 0 {
			logger.Warn("every eligible asset fell below the minimum allocation value")
			return
		}

		totalPriority := decimal.Zero
		for _, c := range survivors {
			totalPriority = totalPriority.Add(c.priority)
		}
		for _, c := range survivors {
			c.share = totalInvestable.Mul(c.priority).Div(totalPriority)
		}

		if e.constraints.MinAllocationValue.IsZero() {
			return
		}
		dropped := 0
		for _, c := range survivors {
			if c.share.LessThan(e.constraints.MinAllocationValue) {
				c.funded = false
				c.share = decimal.Zero
				dropped++
			}
		}
		if dropped == 0 {
			return
		}
		logger.WithFields(map[string]interface{}{
			"dropped":   dropped,
			"remaining": len(survivors) - dropped,
		}).Debug("redistributing shares below minimum allocation value")
	}
}

// applyClassLimits keeps at most MaxAssetsPerClass funded assets per subclass,
// preferring higher priority, then higher score.
func (e *AllocationEngine) applyClassLimits(eligible []*allocationCandidate) {
	if e.constraints.MaxAssetsPerClass <= 0 {
		return
	}
	byClass := make(map[string][]*allocationCandidate)
	for _, c := range eligible {
		byClass[c.input.SubClass] = append(byClass[c.input.SubClass], c)
	}
	for _, group := range byClass {
		if len(group) <= e.constraints.MaxAssetsPerClass {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].priority.Equal(group[j].priority) {
				return group[i].priority.GreaterThan(group[j].priority)
			}
			return group[i].input.Score.GreaterThan(group[j].input.Score)
		})
		for _, c := range group[e.constraints.MaxAssetsPerClass:] {
			c.funded = false
		}
	}
}

func funded(candidates []*allocationCandidate) []*allocationCandidate {
	out := make([]*allocationCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.funded {
			out = append(out, c)
		}
	}
	return out
}

// assembleItems rounds the final shares and validates the rounding-sum
// invariant. Rounding is half-up, applied exactly once per amount.
func assembleItems(candidates []*allocationCandidate, totalInvestable decimal.Decimal) ([]models.RecommendationItem, error) {
	items := make([]models.RecommendationItem, 0, len(candidates))
	sum := decimal.Zero
	fundedCount := 0

	for _, c := range candidates {
		amount := decimal.Zero.Round(amountScale)
		if c.funded {
			amount = c.share.Round(amountScale)
			sum = sum.Add(amount)
			fundedCount++
		}
		item := models.RecommendationItem{
			AssetID:              c.input.AssetID,
			Symbol:               c.input.Symbol,
			Score:                c.input.Score,
			CurrentAllocationPct: c.input.CurrentAllocationPct,
			RecommendedAmount:    amount,
		}
		if c.gap != nil {
			item.TargetAllocationPct = c.gap.TargetMidpoint
			item.AllocationGapPct = c.gap.AllocationGap
			item.IsOverAllocated = c.gap.IsOverAllocated
		}
		items = append(items, item)
	}

	if fundedCount > 0 {
		tolerance := decimal.NewFromInt(int64(fundedCount)).Mul(decimal.RequireFromString("0.01"))
		if sum.Sub(totalInvestable).Abs().GreaterThan(tolerance) {
			return nil, utils.NewAppErrorf(utils.CodeInternal,
				"rounded allocation sum %s deviates from investable total %s beyond tolerance %s",
				sum, totalInvestable, tolerance)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].RecommendedAmount.Equal(items[j].RecommendedAmount) {
			return items[i].RecommendedAmount.GreaterThan(items[j].RecommendedAmount)
		}
		return items[i].Score.GreaterThan(items[j].Score)
	})
	return items, nil
}
