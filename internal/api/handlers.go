package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/database"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/services"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// Handler bundles the service dependencies of the HTTP surface.
type Handler struct {
	engine       *services.AllocationEngine
	recCache     *services.RecommendationCache
	breakers     *services.BreakerRegistry
	redis        *database.RedisClient
	prices       *services.PriceChain
	rates        *services.RateChain
	fundamentals *services.FundamentalsChain
	batch        *services.BatchDriver
	logger       logging.Logger

	baseCurrency string
}

// NewHandler creates the API handler.
func NewHandler(
	engine *services.AllocationEngine,
	recCache *services.RecommendationCache,
	breakers *services.BreakerRegistry,
	redis *database.RedisClient,
	logger logging.Logger,
	baseCurrency string,
) *Handler {
	return &Handler{
		engine:       engine,
		recCache:     recCache,
		breakers:     breakers,
		redis:        redis,
		logger:       logger.WithComponent("api"),
		baseCurrency: baseCurrency,
	}
}

// WithMarketData attaches the market-data chains served under /market.
func (h *Handler) WithMarketData(prices *services.PriceChain, rates *services.RateChain, fundamentals *services.FundamentalsChain) *Handler {
	h.prices = prices
	h.rates = rates
	h.fundamentals = fundamentals
	return h
}

// WithBatch attaches the batch driver served under /admin.
func (h *Handler) WithBatch(batch *services.BatchDriver) *Handler {
	h.batch = batch
	return h
}

// generateRequest is the POST body for a recommendation generation. Monetary
// values arrive as strings to keep decimal precision intact.
type generateRequest struct {
	PortfolioID  string `json:"portfolio_id" binding:"required"`
	Contribution string `json:"contribution" binding:"required"`
	Dividends    string `json:"dividends"`
	BaseCurrency string `json:"base_currency"`
}

// toParams parses the request's decimal strings into engine parameters.
func (r generateRequest) toParams(defaultBase string) (services.GenerateParams, error) {
	contribution, err := decimal.NewFromString(r.Contribution)
	if err != nil {
		return services.GenerateParams{}, utils.NewAppError(utils.CodeValidation, "contribution is not a valid decimal")
	}
	dividends := decimal.Zero
	if r.Dividends != "" {
		dividends, err = decimal.NewFromString(r.Dividends)
		if err != nil {
			return services.GenerateParams{}, utils.NewAppError(utils.CodeValidation, "dividends is not a valid decimal")
		}
	}
	baseCurrency := r.BaseCurrency
	if baseCurrency == "" {
		baseCurrency = defaultBase
	}
	return services.GenerateParams{
		PortfolioID:  r.PortfolioID,
		Contribution: contribution,
		Dividends:    dividends,
		BaseCurrency: baseCurrency,
	}, nil
}

// GenerateRecommendation handles POST /api/v1/users/:userId/recommendations.
func (h *Handler) GenerateRecommendation(c *gin.Context) {
	userID := c.Param("userId")

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewAppError(utils.CodeValidation, "invalid request body: "+err.Error()))
		return
	}

	params, err := req.toParams(h.baseCurrency)
	if err != nil {
		respondError(c, err)
		return
	}

	rec, err := h.engine.Generate(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": rec})
}

// GetRecommendation handles GET /api/v1/users/:userId/recommendations.
func (h *Handler) GetRecommendation(c *gin.Context) {
	userID := c.Param("userId")

	payload, found, err := h.recCache.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		respondError(c, utils.NewAppErrorf(utils.CodeNotFound, "no cached recommendation for user %s", userID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payload, "from_cache": true})
}

// InvalidateRecommendation handles DELETE /api/v1/users/:userId/recommendations.
func (h *Handler) InvalidateRecommendation(c *gin.Context) {
	userID := c.Param("userId")

	if err := h.recCache.Invalidate(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// batchItemRequest is one user's job inside an admin batch run.
type batchItemRequest struct {
	UserID string `json:"user_id" binding:"required"`
	generateRequest
}

type batchRunRequest struct {
	Items []batchItemRequest `json:"items" binding:"required,min=1"`
}

// RunBatch handles POST /api/v1/admin/batch/recommendations, the entry point
// for the overnight refresh scheduler.
func (h *Handler) RunBatch(c *gin.Context) {
	var req batchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewAppError(utils.CodeValidation, "invalid request body: "+err.Error()))
		return
	}

	requests := make([]services.BatchRequest, 0, len(req.Items))
	for _, item := range req.Items {
		params, err := item.toParams(h.baseCurrency)
		if err != nil {
			respondError(c, err)
			return
		}
		requests = append(requests, services.BatchRequest{UserID: item.UserID, Params: params})
	}

	result := h.batch.Run(c.Request.Context(), requests)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetPrices handles GET /api/v1/market/prices?symbols=A,B[&refresh=true].
func (h *Handler) GetPrices(c *gin.Context) {
	symbols, ok := splitSymbols(c)
	if !ok {
		return
	}
	result, err := h.prices.FetchPrices(c.Request.Context(), symbols, fetchOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetRates handles GET /api/v1/market/rates?base=USD&targets=BRL,EUR.
func (h *Handler) GetRates(c *gin.Context) {
	base := c.Query("base")
	if base == "" {
		base = h.baseCurrency
	}
	targets := strings.Split(c.Query("targets"), ",")
	if len(targets) == 0 || targets[0] == "" {
		respondError(c, utils.NewAppError(utils.CodeValidation, "targets query parameter is required"))
		return
	}
	result, err := h.rates.FetchRates(c.Request.Context(), base, targets, fetchOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetFundamentals handles GET /api/v1/market/fundamentals?symbols=A,B.
func (h *Handler) GetFundamentals(c *gin.Context) {
	symbols, ok := splitSymbols(c)
	if !ok {
		return
	}
	result, err := h.fundamentals.FetchFundamentals(c.Request.Context(), symbols, fetchOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func splitSymbols(c *gin.Context) ([]string, bool) {
	raw := c.Query("symbols")
	if raw == "" {
		respondError(c, utils.NewAppError(utils.CodeValidation, "symbols query parameter is required"))
		return nil, false
	}
	return strings.Split(raw, ","), true
}

func fetchOptions(c *gin.Context) services.FetchOptions {
	return services.FetchOptions{SkipCache: c.Query("refresh") == "true"}
}

// Health handles GET /health: redis reachability plus breaker states.
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	redisStatus := "healthy"
	if h.redis != nil {
		if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	var breakers interface{}
	if h.breakers != nil {
		breakers = h.breakers.Snapshots()
	}
	c.JSON(status, gin.H{
		"status":           overall,
		"redis":            redisStatus,
		"circuit_breakers": breakers,
	})
}

// respondError maps an application error onto an HTTP status and envelope.
func respondError(c *gin.Context, err error) {
	code := utils.CodeOf(err)
	if _, ok := utils.IsRateLimitError(err); ok {
		code = utils.CodeRateLimited
	}
	c.JSON(statusForCode(code), gin.H{
		"error": gin.H{
			"code":    string(code),
			"message": err.Error(),
		},
	})
}

func statusForCode(code utils.ErrorCode) int {
	switch code {
	case utils.CodeValidation:
		return http.StatusBadRequest
	case utils.CodeNotFound:
		return http.StatusNotFound
	case utils.CodeRateNotFound:
		return http.StatusUnprocessableEntity
	case utils.CodeRateLimited:
		return http.StatusTooManyRequests
	case utils.CodeProviderFailed:
		return http.StatusBadGateway
	case utils.CodeAllProvidersFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
