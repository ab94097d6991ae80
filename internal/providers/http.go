package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// getJSON performs a GET request and decodes the JSON response body into dest.
// HTTP failure statuses are mapped into the application error taxonomy so the
// retry executor can classify them.
func getJSON(ctx context.Context, client *http.Client, provider, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return utils.WrapAppError(utils.CodeProviderFailed,
			fmt.Sprintf("provider %s request failed", provider), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp, provider); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.WrapAppError(utils.CodeProviderFailed,
			fmt.Sprintf("provider %s response read failed", provider), err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return utils.WrapAppError(utils.CodeProviderFailed,
			fmt.Sprintf("provider %s returned malformed JSON", provider), err)
	}
	return nil
}

// classifyStatus maps an HTTP response status into the error taxonomy.
func classifyStatus(resp *http.Response, provider string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &utils.RateLimitError{
			Provider:   provider,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusNotFound:
		return utils.NewAppErrorf(utils.CodeNotFound, "provider %s: resource not found", provider)
	case resp.StatusCode >= 500:
		return utils.NewAppErrorf(utils.CodeProviderFailed, "provider %s returned HTTP %d", provider, resp.StatusCode)
	default:
		// Client errors other than 404/429 are not retryable
		return utils.NewAppErrorf(utils.CodeValidation, "provider %s rejected request with HTTP %d", provider, resp.StatusCode)
	}
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
