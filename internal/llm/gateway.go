package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// GatewayConfig configures the HTTP gateway client
type GatewayConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// GatewayClient talks to the LLM gateway over HTTP. Calls run through a
// circuit breaker so a degraded gateway fails fast instead of stalling
// every agent workflow.
type GatewayClient struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

// NewGatewayClient creates a gateway client with defaults applied
func NewGatewayClient(cfg GatewayConfig, log zerolog.Logger) *GatewayClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:8080/v1/generate"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clog := log.With().Str("component", "llm_gateway").Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-gateway",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clog.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("LLM gateway circuit breaker state changed")
		},
	})

	return &GatewayClient{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		breaker:     breaker,
		log:         clog,
	}
}

type gatewayRequest struct {
	Model        string  `json:"model"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

type gatewayError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate sends the request through the circuit breaker with exponential
// backoff between retries.
func (c *GatewayClient) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			c.log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying LLM request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.generate(ctx, req)
		})
		if err == nil {
			return result.(*Response), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("LLM request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *GatewayClient) generate(ctx context.Context, req Request) (*Response, error) {
	model := c.model
	if req.ModelHint != "" {
		model = req.ModelHint
	}
	temperature := c.temperature
	if req.Temperature != 0 {
		temperature = req.Temperature
	}
	maxTokens := c.maxTokens
	if req.MaxTokens != 0 {
		maxTokens = req.MaxTokens
	}

	body, err := json.Marshal(gatewayRequest{
		Model:        model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var gerr gatewayError
		if err := json.Unmarshal(raw, &gerr); err != nil || gerr.Error.Message == "" {
			return nil, fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(raw))
		}
		return nil, fmt.Errorf("gateway error: %s", gerr.Error.Message)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.LatencySeconds == 0 {
		out.LatencySeconds = time.Since(start).Seconds()
	}

	c.log.Debug().
		Str("model", out.Model).
		Int("tokens", out.TokensUsed).
		Float64("cost", out.CostEstimate).
		Dur("duration", time.Since(start)).
		Msg("LLM request completed")

	return &out, nil
}

// ParseJSONResponse decodes a JSON payload from generated content, stripping
// markdown code fences when present.
func ParseJSONResponse(content string, target interface{}) error {
	content = extractJSONFromMarkdown(content)
	if err := json.Unmarshal([]byte(content), target); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func extractJSONFromMarkdown(content string) string {
	raw := []byte(content)
	start := -1
	if idx := bytes.Index(raw, []byte("```json")); idx >= 0 {
		start = idx + 7
	} else if idx := bytes.Index(raw, []byte("```")); idx >= 0 {
		start = idx + 3
	}
	if start >= 0 {
		if idx := bytes.Index(raw[start:], []byte("```")); idx >= 0 {
			raw = raw[start : start+idx]
		}
	}
	return string(bytes.TrimSpace(raw))
}
