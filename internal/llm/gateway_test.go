package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req gatewayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "summarize pricing", req.Prompt)
		assert.Equal(t, "gpt-4o-mini", req.Model)

		json.NewEncoder(w).Encode(Response{
			Content:      "analysis complete",
			Model:        "gpt-4o-mini",
			TokensUsed:   120,
			CostEstimate: 0.002,
		})
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{
		Endpoint: server.URL,
		APIKey:   "test-key",
	}, zerolog.Nop())

	resp, err := client.Generate(context.Background(), Request{Prompt: "summarize pricing"})
	require.NoError(t, err)
	assert.Equal(t, "analysis complete", resp.Content)
	assert.Equal(t, 120, resp.TokensUsed)
	assert.Greater(t, resp.LatencySeconds, 0.0)
}

func TestGenerateModelHintOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gatewayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		json.NewEncoder(w).Encode(Response{Content: "ok", Model: req.Model})
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{Endpoint: server.URL}, zerolog.Nop())
	resp, err := client.Generate(context.Background(), Request{Prompt: "p", ModelHint: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
}

func TestGenerateGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{Endpoint: server.URL}, zerolog.Nop())
	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Response{Content: "recovered"})
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{Endpoint: server.URL, MaxRetries: 2}, zerolog.Nop())
	resp, err := client.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 2, attempts)
}

func TestGenerateCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(Response{Content: "late"})
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{Endpoint: server.URL}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestParseJSONResponse(t *testing.T) {
	type out struct {
		Summary    string  `json:"summary"`
		Confidence float64 `json:"confidence"`
	}

	cases := []struct {
		name    string
		content string
	}{
		{"bare json", `{"summary":"s","confidence":0.8}`},
		{"json fence", "```json\n{\"summary\":\"s\",\"confidence\":0.8}\n```"},
		{"plain fence", "```\n{\"summary\":\"s\",\"confidence\":0.8}\n```"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got out
			require.NoError(t, ParseJSONResponse(tc.content, &got))
			assert.Equal(t, "s", got.Summary)
			assert.InDelta(t, 0.8, got.Confidence, 0.0001)
		})
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	var got map[string]interface{}
	err := ParseJSONResponse("this is not json", &got)
	assert.Error(t, err)
}
