package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/services"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// PortfolioClient implements services.PortfolioService against the external
// portfolio HTTP service.
type PortfolioClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPortfolioClient creates a portfolio client from endpoint configuration.
func NewPortfolioClient(cfg config.ProviderEndpointConfig) *PortfolioClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PortfolioClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type portfolioAssetPayload struct {
	AssetID              string  `json:"asset_id"`
	Symbol               string  `json:"symbol"`
	Currency             string  `json:"currency"`
	CurrentValue         string  `json:"current_value"`
	CurrentAllocationPct string  `json:"current_allocation_pct"`
	TargetMin            *string `json:"target_min"`
	TargetMax            *string `json:"target_max"`
	SubClass             string  `json:"sub_class"`
}

type portfolioResponse struct {
	PortfolioID string                  `json:"portfolio_id"`
	TotalValue  string                  `json:"total_value"`
	Assets      []portfolioAssetPayload `json:"assets"`
}

// LoadAllocationInputs fetches the holdings of a portfolio. A 404 maps to
// NOT_FOUND as the allocation engine expects.
func (c *PortfolioClient) LoadAllocationInputs(ctx context.Context, userID, portfolioID string) (*services.PortfolioSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s/portfolios/%s/allocation-inputs",
		c.baseURL, url.PathEscape(userID), url.PathEscape(portfolioID))

	var resp portfolioResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	snapshot := &services.PortfolioSnapshot{
		PortfolioID: resp.PortfolioID,
		Assets:      make([]models.AssetAllocationInput, 0, len(resp.Assets)),
	}
	if resp.TotalValue != "" {
		total, err := decimal.NewFromString(resp.TotalValue)
		if err != nil {
			return nil, utils.WrapAppError(utils.CodeInternal, "portfolio service returned malformed total value", err)
		}
		snapshot.TotalValue = total
	}

	for _, asset := range resp.Assets {
		input := models.AssetAllocationInput{
			AssetID:  asset.AssetID,
			Symbol:   asset.Symbol,
			Currency: asset.Currency,
			SubClass: asset.SubClass,
		}
		var err error
		if input.CurrentValue, err = decimal.NewFromString(asset.CurrentValue); err != nil {
			return nil, utils.WrapAppError(utils.CodeInternal,
				fmt.Sprintf("portfolio service returned malformed value for asset %s", asset.AssetID), err)
		}
		if asset.CurrentAllocationPct != "" {
			if input.CurrentAllocationPct, err = decimal.NewFromString(asset.CurrentAllocationPct); err != nil {
				return nil, utils.WrapAppError(utils.CodeInternal,
					fmt.Sprintf("portfolio service returned malformed allocation pct for asset %s", asset.AssetID), err)
			}
		}
		if input.TargetMin, err = optionalDecimal(asset.TargetMin); err != nil {
			return nil, utils.WrapAppError(utils.CodeInternal,
				fmt.Sprintf("portfolio service returned malformed target min for asset %s", asset.AssetID), err)
		}
		if input.TargetMax, err = optionalDecimal(asset.TargetMax); err != nil {
			return nil, utils.WrapAppError(utils.CodeInternal,
				fmt.Sprintf("portfolio service returned malformed target max for asset %s", asset.AssetID), err)
		}
		snapshot.Assets = append(snapshot.Assets, input)
	}
	return snapshot, nil
}

func optionalDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *PortfolioClient) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build portfolio request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.WrapAppError(utils.CodeProviderFailed, "portfolio service request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return utils.NewAppError(utils.CodeNotFound, "portfolio not found")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return utils.NewAppErrorf(utils.CodeProviderFailed, "portfolio service returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.WrapAppError(utils.CodeProviderFailed, "portfolio service response read failed", err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return utils.WrapAppError(utils.CodeProviderFailed, "portfolio service returned malformed JSON", err)
	}
	return nil
}
