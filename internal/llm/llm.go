// Package llm provides the gateway client for language-model calls made by
// FlipSync agents, plus per-request cost tracking against a daily ceiling.
package llm

import (
	"context"
)

// Request is a single generation request. ModelHint is advisory; the gateway
// picks the cheapest model that satisfies it.
type Request struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	ModelHint    string  `json:"model_hint,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// Response is the gateway's answer to a generation request
type Response struct {
	Content        string  `json:"content"`
	Model          string  `json:"model"`
	TokensUsed     int     `json:"tokens_used"`
	LatencySeconds float64 `json:"latency_seconds"`
	CostEstimate   float64 `json:"cost_estimate"`
}

// Client is the generation contract consumed by agents
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
