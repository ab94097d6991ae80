package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/services"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// ScoringClient implements services.ScoringService against the external
// scoring HTTP service.
type ScoringClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewScoringClient creates a scoring client from endpoint configuration.
func NewScoringClient(cfg config.ProviderEndpointConfig) *ScoringClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ScoringClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	UserID   string   `json:"user_id"`
	AssetIDs []string `json:"asset_ids"`
}

type scoreResponse struct {
	CriteriaVersionID string `json:"criteria_version_id"`
	CorrelationID     string `json:"correlation_id"`
	Scores            []struct {
		AssetID string      `json:"asset_id"`
		Score   json.Number `json:"score"`
	} `json:"scores"`
}

// ScoreAssets scores the given assets against the user's active criteria.
func (c *ScoringClient) ScoreAssets(ctx context.Context, userID string, assetIDs []string) (*services.ScoringResult, error) {
	payload, err := json.Marshal(scoreRequest{UserID: userID, AssetIDs: assetIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/scores", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.WrapAppError(utils.CodeProviderFailed, "scoring service request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, utils.NewAppErrorf(utils.CodeProviderFailed, "scoring service returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.WrapAppError(utils.CodeProviderFailed, "scoring service response read failed", err)
	}
	var decoded scoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, utils.WrapAppError(utils.CodeProviderFailed, "scoring service returned malformed JSON", err)
	}

	result := &services.ScoringResult{
		CriteriaVersionID: decoded.CriteriaVersionID,
		CorrelationID:     decoded.CorrelationID,
		Scores:            make(map[string]decimal.Decimal, len(decoded.Scores)),
	}
	for _, s := range decoded.Scores {
		score, err := decimal.NewFromString(s.Score.String())
		if err != nil {
			return nil, utils.NewAppErrorf(utils.CodeProviderFailed,
				"scoring service returned unparsable score %q for asset %s", s.Score, s.AssetID)
		}
		result.Scores[s.AssetID] = score
	}
	return result, nil
}
