package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

func TestGetJSONDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	var dest struct {
		Value string `json:"value"`
	}
	err := getJSON(context.Background(), server.Client(), "test", server.URL, &dest)
	require.NoError(t, err)
	assert.Equal(t, "ok", dest.Value)
}

func TestGetJSONMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var dest map[string]string
	err := getJSON(context.Background(), server.Client(), "test", server.URL, &dest)
	require.Error(t, err)
	assert.Equal(t, utils.CodeProviderFailed, utils.CodeOf(err))
}

func TestGetJSONServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var dest map[string]string
	err := getJSON(context.Background(), server.Client(), "test", server.URL, &dest)
	require.Error(t, err)
	assert.Equal(t, utils.CodeProviderFailed, utils.CodeOf(err))
	assert.True(t, utils.IsRetryable(err))
}

func TestGetJSONNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var dest map[string]string
	err := getJSON(context.Background(), server.Client(), "test", server.URL, &dest)
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
	assert.False(t, utils.IsRetryable(err))
}

func TestGetJSONRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var dest map[string]string
	err := getJSON(context.Background(), server.Client(), "test", server.URL, &dest)
	require.Error(t, err)

	retryAfter, ok := utils.IsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, retryAfter)
}

func TestGetJSONClientErrorNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var dest map[string]string
	err := getJSON(context.Background(), server.Client(), "test", server.URL, &dest)
	require.Error(t, err)
	assert.Equal(t, utils.CodeValidation, utils.CodeOf(err))
	assert.False(t, utils.IsRetryable(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
}
