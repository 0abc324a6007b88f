// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient is a mock implementation of HTTPClient.
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func jsonResponse(status int, body interface{}) *http.Response {
	raw, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func TestNewProvider_Success(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "test-api-key"})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, "anthropic", provider.Name())
	assert.Equal(t, DefaultBaseURL, provider.baseURL)
	assert.Equal(t, DefaultAPIVersion, provider.apiVersion)
	assert.Equal(t, DefaultModel, provider.model)
	assert.Equal(t, DefaultTimeout, provider.timeout)
	assert.True(t, provider.IsHealthy())
}

func TestNewProvider_CustomConfig(t *testing.T) {
	provider, err := NewProvider(Config{
		APIKey:     "test-api-key",
		BaseURL:    "https://custom.anthropic.com",
		APIVersion: "2024-01-01",
		Model:      ModelClaude4Opus,
		Timeout:    60 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, "https://custom.anthropic.com", provider.baseURL)
	assert.Equal(t, "2024-01-01", provider.apiVersion)
	assert.Equal(t, ModelClaude4Opus, provider.model)
	assert.Equal(t, 60*time.Second, provider.timeout)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	provider, err := NewProvider(Config{})

	assert.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestProvider_IsHealthy(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.True(t, provider.IsHealthy())

	provider.setHealthy(false)
	assert.False(t, provider.IsHealthy())
}

func TestProvider_EstimateCost(t *testing.T) {
	provider := &Provider{}
	assert.InDelta(t, 0.009, provider.EstimateCost(1000), 1e-9)
}

func TestProvider_Complete_Success(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		return req.Header.Get("x-api-key") == "test-key" &&
			req.Header.Get("anthropic-version") == DefaultAPIVersion &&
			bytes.Contains(body, []byte(`"model":"`+DefaultModel+`"`))
	})).Return(jsonResponse(http.StatusOK, map[string]interface{}{
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content":     []map[string]string{{"type": "text", "text": "hello there"}},
		"usage":       map[string]int{"input_tokens": 12, "output_tokens": 4},
	}), nil)

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Prompt:       "hi",
		SystemPrompt: "be terse",
		MaxTokens:    64,
		Temperature:  0.2,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 4, resp.Usage.OutputTokens)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.True(t, provider.IsHealthy())
	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_ZeroTemperatureIsDeterministic(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		return bytes.Contains(body, []byte(`"temperature":0`))
	})).Return(jsonResponse(http.StatusOK, map[string]interface{}{
		"model":   DefaultModel,
		"content": []map[string]string{{"type": "text", "text": "ok"}},
		"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
	}), nil)

	_, err = provider.Complete(context.Background(), CompletionRequest{Prompt: "hi", Temperature: 0})
	require.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestProvider_Complete_NetworkError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err = provider.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.False(t, provider.IsHealthy())
}

func TestProvider_Complete_APIError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(jsonResponse(http.StatusTooManyRequests, map[string]interface{}{
		"type":  "error",
		"error": map[string]string{"type": "rate_limit_error", "message": "slow down"},
	}), nil)

	_, err = provider.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimitError())
	assert.False(t, apiErr.IsAuthError())
	// Rate limiting (4xx) doesn't mark the provider unhealthy; only 5xx does.
	assert.True(t, provider.IsHealthy())
}

func TestProvider_Complete_ServerErrorMarksUnhealthy(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(jsonResponse(http.StatusServiceUnavailable, map[string]interface{}{
		"type":  "error",
		"error": map[string]string{"type": "overloaded_error", "message": "overloaded"},
	}), nil)

	_, err = provider.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsOverloadedError())
	assert.False(t, provider.IsHealthy())
}

func TestIsValidModel(t *testing.T) {
	assert.True(t, IsValidModel(ModelClaude4Opus))
	assert.True(t, IsValidModel(ModelClaude35Sonnet))
	assert.True(t, IsValidModel("claude-some-future-model"))
	assert.False(t, IsValidModel("gpt-4"))
}
