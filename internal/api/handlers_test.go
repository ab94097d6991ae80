package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/services"
	"github.com/franaraujo77/investments-planner-sub008/internal/testutil"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

type stubPortfolioService struct {
	snapshot *services.PortfolioSnapshot
	err      error
}

func (s *stubPortfolioService) LoadAllocationInputs(ctx context.Context, userID, portfolioID string) (*services.PortfolioSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type stubScoringService struct {
	result *services.ScoringResult
}

func (s *stubScoringService) ScoreAssets(ctx context.Context, userID string, assetIDs []string) (*services.ScoringResult, error) {
	return s.result, nil
}

type apiFixture struct {
	router    *gin.Engine
	portfolio *stubPortfolioService
	recCache  *services.RecommendationCache
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client, _ := testutil.NewTestRedis(t)
	logger := logging.NewStandardLogger("error", "test")
	rates := services.NewRateStore(client, logger, time.Hour)
	converter := services.NewCurrencyConverter(rates, nil, logger, 24*time.Hour)
	recCache := services.NewRecommendationCache(client, logger, 24*time.Hour)
	breakers := services.NewBreakerRegistry(services.BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute}, logger)

	targetMin := decimal.RequireFromString("15")
	targetMax := decimal.RequireFromString("25")
	portfolio := &stubPortfolioService{snapshot: &services.PortfolioSnapshot{
		PortfolioID: "port-1",
		TotalValue:  decimal.RequireFromString("50000.00"),
		Assets: []models.AssetAllocationInput{{
			AssetID:              "asset-a",
			Symbol:               "PETR4",
			Currency:             "BRL",
			CurrentValue:         decimal.RequireFromString("5000.00"),
			CurrentAllocationPct: decimal.RequireFromString("10"),
			TargetMin:            &targetMin,
			TargetMax:            &targetMax,
			SubClass:             "stocks",
		}},
	}}
	scoring := &stubScoringService{result: &services.ScoringResult{
		CriteriaVersionID: "criteria-v3",
		CorrelationID:     "scoring-corr-1",
		Scores:            map[string]decimal.Decimal{"asset-a": decimal.RequireFromString("80")},
	}}

	engine := services.NewAllocationEngine(portfolio, scoring, converter, recCache, nil, logger, models.AllocationConstraints{}, 24*time.Hour)
	batch := services.NewBatchDriver(engine, nil, nil, logger, config.BatchConfig{Concurrency: 2})
	handler := NewHandler(engine, recCache, breakers, nil, logger, "BRL").WithBatch(batch)
	return &apiFixture{
		router:    NewRouter(handler, "test"),
		portfolio: portfolio,
		recCache:  recCache,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestGenerateEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/users/user-1/recommendations",
		`{"portfolio_id":"port-1","contribution":"1000.00","dividends":"0.00"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data models.Recommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.Data.UserID)
	assert.Equal(t, "BRL", resp.Data.BaseCurrency)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "1000", resp.Data.Items[0].RecommendedAmount.String())
}

func TestGenerateEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing portfolio id", `{"contribution":"1000.00"}`},
		{"malformed contribution", `{"portfolio_id":"port-1","contribution":"abc"}`},
		{"zero contribution", `{"portfolio_id":"port-1","contribution":"0"}`},
		{"three decimal places", `{"portfolio_id":"port-1","contribution":"10.123"}`},
		{"not json", `oops`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/users/user-1/recommendations", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), string(utils.CodeValidation))
		})
	}
}

func TestGenerateEndpointPortfolioNotFound(t *testing.T) {
	f := newAPIFixture(t)
	f.portfolio.err = utils.NewAppError(utils.CodeNotFound, "portfolio not found")

	w := f.do(t, http.MethodPost, "/api/v1/users/user-1/recommendations",
		`{"portfolio_id":"missing","contribution":"1000.00"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(utils.CodeNotFound))
}

func TestGetRecommendationCacheHit(t *testing.T) {
	f := newAPIFixture(t)

	// Generate first so the cache is populated.
	w := f.do(t, http.MethodPost, "/api/v1/users/user-1/recommendations",
		`{"portfolio_id":"port-1","contribution":"1000.00"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/users/user-1/recommendations", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data      models.CachedRecommendation `json:"data"`
		FromCache bool                        `json:"from_cache"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.FromCache)
	assert.Equal(t, "user-1", resp.Data.Recommendation.UserID)
}

func TestGetRecommendationCacheMiss(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/users/nobody/recommendations", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidateRecommendation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/users/user-1/recommendations",
		`{"portfolio_id":"port-1","contribution":"1000.00"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/users/user-1/recommendations", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/users/user-1/recommendations", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunBatchEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	body := `{"items":[
		{"user_id":"user-1","portfolio_id":"port-1","contribution":"1000.00"},
		{"user_id":"user-2","portfolio_id":"port-1","contribution":"500.00"}
	]}`
	w := f.do(t, http.MethodPost, "/api/v1/admin/batch/recommendations", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data services.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Succeeded)
	assert.Equal(t, 0, resp.Data.Failed)
}

func TestRunBatchRejectsEmptyItems(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/batch/recommendations", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestStatusForCodeMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForCode(utils.CodeValidation))
	assert.Equal(t, http.StatusNotFound, statusForCode(utils.CodeNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForCode(utils.CodeRateNotFound))
	assert.Equal(t, http.StatusTooManyRequests, statusForCode(utils.CodeRateLimited))
	assert.Equal(t, http.StatusBadGateway, statusForCode(utils.CodeProviderFailed))
	assert.Equal(t, http.StatusServiceUnavailable, statusForCode(utils.CodeAllProvidersFailed))
	assert.Equal(t, http.StatusInternalServerError, statusForCode(utils.CodeInternal))
}
