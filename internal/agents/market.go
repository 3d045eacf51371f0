// Package agents implements the FlipSync specialist agents: market,
// content, logistics and automation. Every specialist degrades to a valid
// low-confidence result when a downstream provider fails, so orchestration
// never cascade-fails on provider outages.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/llm"
	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// PriceHistoryProvider supplies recent observed prices for a product query
// on a marketplace, oldest first.
type PriceHistoryProvider interface {
	PriceHistory(ctx context.Context, productQuery string, m marketplace.Marketplace) ([]float64, error)
}

// MarketAnalysisRequest asks for a pricing and competition analysis
type MarketAnalysisRequest struct {
	ProductQuery       string                  `json:"product_query"`
	TargetMarketplace  marketplace.Marketplace `json:"target_marketplace"`
	AnalysisDepth      string                  `json:"analysis_depth,omitempty"`
	IncludeCompetitors bool                    `json:"include_competitors"`
	PriceRange         *[2]float64             `json:"price_range,omitempty"`
}

// MarketAnalysisResult is always valid; failures reduce ConfidenceScore
// and explain themselves in Reasoning.
type MarketAnalysisResult struct {
	ProductQuery     string          `json:"product_query"`
	RecommendedPrice decimal.Decimal `json:"recommended_price"`
	PriceTrend       string          `json:"price_trend"`
	CompetitorCount  int             `json:"competitor_count"`
	ConfidenceScore  float64         `json:"confidence_score"`
	Reasoning        string          `json:"reasoning"`
}

// MarketAgent analyzes pricing and competition using observed price history
// plus an optional LLM for qualitative depth.
type MarketAgent struct {
	id      string
	client  llm.Client
	history PriceHistoryProvider
	log     zerolog.Logger

	mu    sync.Mutex
	watch []MarketAnalysisRequest
}

// NewMarketAgent creates a market specialist. Both collaborators are
// optional; absence degrades confidence rather than failing.
func NewMarketAgent(client llm.Client, history PriceHistoryProvider, log zerolog.Logger) *MarketAgent {
	return &MarketAgent{
		id:      "market_agent",
		client:  client,
		history: history,
		log:     log.With().Str("agent", "market_agent").Logger(),
	}
}

func (a *MarketAgent) AgentID() string        { return a.id }
func (a *MarketAgent) AgentType() agent.Type  { return agent.TypeMarket }
func (a *MarketAgent) Capabilities() []string {
	return []string{"pricing_analysis", "competitor_research", "trend_detection"}
}

// AnalyzeMarket produces a pricing recommendation. Bad inputs are explicit
// errors; provider failures degrade to a fallback result.
func (a *MarketAgent) AnalyzeMarket(ctx context.Context, req MarketAnalysisRequest) (*MarketAnalysisResult, error) {
	if req.ProductQuery == "" {
		return nil, fmt.Errorf("product_query is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prices, err := a.loadHistory(ctx, req)
	if err != nil || len(prices) == 0 {
		a.log.Warn().Err(err).Str("query", req.ProductQuery).Msg("No price history, returning fallback analysis")
		return a.fallbackResult(req, "no price history available"), nil
	}

	priceTrend := detectTrend(prices)
	recommended := recommendPrice(prices, req.PriceRange)

	result := &MarketAnalysisResult{
		ProductQuery:     req.ProductQuery,
		RecommendedPrice: recommended,
		PriceTrend:       priceTrend,
		ConfidenceScore:  0.75,
		Reasoning: fmt.Sprintf("Recommended %s from %d observed prices on %s; trend %s",
			recommended.StringFixed(2), len(prices), req.TargetMarketplace, priceTrend),
	}
	if req.IncludeCompetitors {
		result.CompetitorCount = len(prices)
	}

	if a.client != nil && req.AnalysisDepth == "deep" {
		a.enrichWithLLM(ctx, req, result, prices)
	}
	return result, nil
}

type llmMarketView struct {
	Summary         string  `json:"summary"`
	CompetitorCount int     `json:"competitor_count"`
	Confidence      float64 `json:"confidence"`
}

func (a *MarketAgent) enrichWithLLM(ctx context.Context, req MarketAnalysisRequest, result *MarketAnalysisResult, prices []float64) {
	pricesJSON, _ := json.Marshal(prices)
	resp, err := a.client.Generate(ctx, llm.Request{
		Prompt: fmt.Sprintf(`Observed prices for %q on %s: %s. Trend: %s.
Respond with JSON only: {"summary": string, "competitor_count": number, "confidence": number}`,
			req.ProductQuery, req.TargetMarketplace, pricesJSON, result.PriceTrend),
		SystemPrompt: "You are a marketplace pricing analyst. Answer with strict JSON.",
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("LLM enrichment failed, keeping quantitative analysis")
		return
	}
	var view llmMarketView
	if err := llm.ParseJSONResponse(resp.Content, &view); err != nil {
		return
	}
	result.Reasoning = fmt.Sprintf("%s. %s", result.Reasoning, view.Summary)
	if view.CompetitorCount > 0 {
		result.CompetitorCount = view.CompetitorCount
	}
	if view.Confidence > 0 && view.Confidence <= 1 {
		result.ConfidenceScore = view.Confidence
	}
}

// WatchProduct registers a product whose market conditions feed the
// intelligence snapshot. Duplicate registrations are ignored.
func (a *MarketAgent) WatchProduct(query string, m marketplace.Marketplace) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.watch {
		if w.ProductQuery == query && w.TargetMarketplace == m {
			return
		}
	}
	a.watch = append(a.watch, MarketAnalysisRequest{ProductQuery: query, TargetMarketplace: m})
}

// GatherMarketIntelligence analyzes every watched product and returns the
// per-query summaries, for coalescing into an executive analysis context.
func (a *MarketAgent) GatherMarketIntelligence(ctx context.Context) (map[string]interface{}, error) {
	a.mu.Lock()
	watch := make([]MarketAnalysisRequest, len(a.watch))
	copy(watch, a.watch)
	a.mu.Unlock()

	out := make(map[string]interface{}, len(watch))
	for _, req := range watch {
		result, err := a.AnalyzeMarket(ctx, req)
		if err != nil {
			return nil, err
		}
		out[req.ProductQuery] = map[string]interface{}{
			"marketplace":       string(req.TargetMarketplace),
			"recommended_price": result.RecommendedPrice.String(),
			"price_trend":       result.PriceTrend,
			"confidence":        result.ConfidenceScore,
		}
	}
	return out, nil
}

func (a *MarketAgent) loadHistory(ctx context.Context, req MarketAnalysisRequest) ([]float64, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.PriceHistory(ctx, req.ProductQuery, req.TargetMarketplace)
}

func (a *MarketAgent) fallbackResult(req MarketAnalysisRequest, cause string) *MarketAnalysisResult {
	recommended := decimal.Zero
	if req.PriceRange != nil {
		recommended = decimal.NewFromFloat((req.PriceRange[0] + req.PriceRange[1]) / 2)
	}
	return &MarketAnalysisResult{
		ProductQuery:     req.ProductQuery,
		RecommendedPrice: recommended,
		PriceTrend:       "neutral",
		ConfidenceScore:  0.3,
		Reasoning:        fmt.Sprintf("fallback: true (%s)", cause),
	}
}

// HandleMessage answers a free-form request with a market analysis summary
func (a *MarketAgent) HandleMessage(ctx context.Context, message, conversationID, userID string) (*agent.Response, error) {
	start := time.Now()
	result, err := a.AnalyzeMarket(ctx, MarketAnalysisRequest{
		ProductQuery:      message,
		TargetMarketplace: marketplace.Ebay,
	})
	if err != nil {
		return nil, err
	}

	return &agent.Response{
		Content:      result.Reasoning,
		AgentType:    agent.TypeMarket,
		Confidence:   result.ConfidenceScore,
		ResponseTime: time.Since(start).Seconds(),
		Metadata: map[string]interface{}{
			"conversation_id": conversationID,
			"user_id":         userID,
			"request_type":    "analysis",
			"data": map[string]interface{}{
				"recommended_price": result.RecommendedPrice.String(),
				"price_trend":       result.PriceTrend,
			},
		},
	}, nil
}

// detectTrend compares the short EMA against the long SMA of the price
// series.
func detectTrend(prices []float64) string {
	if len(prices) < 3 {
		return "neutral"
	}

	shortPeriod := 3
	longPeriod := len(prices)
	if longPeriod > 10 {
		longPeriod = 10
	}

	ema := lastIndicatorValue(trend.NewEmaWithPeriod[float64](shortPeriod), prices)
	sma := lastIndicatorValue(trend.NewSmaWithPeriod[float64](longPeriod), prices)

	switch {
	case ema > sma*1.01:
		return "rising"
	case ema < sma*0.99:
		return "falling"
	default:
		return "neutral"
	}
}

type streamIndicator interface {
	Compute(<-chan float64) <-chan float64
}

func lastIndicatorValue(ind streamIndicator, prices []float64) float64 {
	in := make(chan float64, len(prices))
	for _, p := range prices {
		in <- p
	}
	close(in)

	var last float64
	for v := range ind.Compute(in) {
		last = v
	}
	return last
}

// recommendPrice takes the recent average, clamped into the requested range
func recommendPrice(prices []float64, priceRange *[2]float64) decimal.Decimal {
	window := len(prices)
	if window > 5 {
		window = 5
	}
	sum := 0.0
	for _, p := range prices[len(prices)-window:] {
		sum += p
	}
	avg := sum / float64(window)

	if priceRange != nil {
		if avg < priceRange[0] {
			avg = priceRange[0]
		}
		if avg > priceRange[1] {
			avg = priceRange[1]
		}
	}
	return decimal.NewFromFloat(avg).Round(2)
}
