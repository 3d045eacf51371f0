package executive

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/llm"
)

// countingLLM returns canned JSON, counts Generate calls and keeps the
// last prompt for inspection
type countingLLM struct {
	calls   atomic.Int64
	content string
	err     error

	mu         sync.Mutex
	lastPrompt string
}

func (c *countingLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.lastPrompt = req.Prompt
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: c.content, Model: "stub", TokensUsed: 50, CostEstimate: 0.001}, nil
}

type stubIntelligence struct {
	data map[string]interface{}
	err  error
}

func (s stubIntelligence) GatherMarketIntelligence(ctx context.Context) (map[string]interface{}, error) {
	return s.data, s.err
}

const analysisJSON = `{
	"strategic_summary": "Expand eBay listings into adjacent categories",
	"recommendations": ["raise prices on fast movers"],
	"implementation_plan": ["week 1: audit listings"],
	"performance_metrics": {"expected_margin_lift": 0.08},
	"confidence": 0.82,
	"risk_factors": ["fee changes"]
}`

func strategicRequest() StrategicRequest {
	return StrategicRequest{
		DecisionType: "market_expansion",
		BusinessContext: map[string]interface{}{
			"monthly_revenue": 42000,
			"top_marketplace": "ebay",
		},
		Objectives:    []string{"grow revenue", "protect margin"},
		Budget:        20000,
		TimelineWeeks: 8,
	}
}

func TestAnalyzeParsesLLMResponse(t *testing.T) {
	stub := &countingLLM{content: analysisJSON}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())

	analysis, err := a.Analyze(context.Background(), strategicRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, "Expand eBay listings into adjacent categories", analysis.StrategicSummary)
	assert.InDelta(t, 0.82, analysis.Confidence, 0.0001)
	assert.False(t, analysis.Fallback)
	assert.Equal(t, []string{"fee changes"}, analysis.RiskFactors)
}

func TestAnalyzeCacheSingleLLMCall(t *testing.T) {
	// identical (decision_type, business_context) within the TTL observes
	// exactly one LLM call
	stub := &countingLLM{content: analysisJSON}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())
	ctx := context.Background()

	first, err := a.Analyze(ctx, strategicRequest(), nil)
	require.NoError(t, err)
	second, err := a.Analyze(ctx, strategicRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stub.calls.Load())
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
}

func TestAnalyzeConcurrentSingleFlight(t *testing.T) {
	stub := &countingLLM{content: analysisJSON}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Analyze(context.Background(), strategicRequest(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestAnalyzeDistinctContextsMiss(t *testing.T) {
	stub := &countingLLM{content: analysisJSON}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())
	ctx := context.Background()

	_, err := a.Analyze(ctx, strategicRequest(), nil)
	require.NoError(t, err)

	other := strategicRequest()
	other.BusinessContext["top_marketplace"] = "amazon"
	_, err = a.Analyze(ctx, other, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stub.calls.Load())
}

func TestAnalyzeMergesMarketIntelligence(t *testing.T) {
	stub := &countingLLM{content: analysisJSON}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())
	a.SetMarketIntelligence(stubIntelligence{data: map[string]interface{}{
		"SKU-1": map[string]interface{}{"price_trend": "rising", "recommended_price": "24.99"},
	}})

	_, err := a.Analyze(context.Background(), strategicRequest(), nil)
	require.NoError(t, err)

	stub.mu.Lock()
	prompt := stub.lastPrompt
	stub.mu.Unlock()
	assert.Contains(t, prompt, "market_intelligence")
	assert.Contains(t, prompt, "rising")
	// caller-provided metrics stay in the context
	assert.Contains(t, prompt, "monthly_revenue")
}

func TestAnalyzeDegradesWithoutMarketIntelligence(t *testing.T) {
	stub := &countingLLM{content: analysisJSON}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())
	a.SetMarketIntelligence(stubIntelligence{err: assert.AnError})

	analysis, err := a.Analyze(context.Background(), strategicRequest(), nil)
	require.NoError(t, err)
	assert.False(t, analysis.Fallback)

	stub.mu.Lock()
	prompt := stub.lastPrompt
	stub.mu.Unlock()
	assert.NotContains(t, prompt, "market_intelligence")
}

func TestAnalyzeFallbackWithoutLLM(t *testing.T) {
	a := NewStrategicAnalyzer(nil, nil, 0, zerolog.Nop())

	analysis, err := a.Analyze(context.Background(), strategicRequest(), nil)
	require.NoError(t, err)
	assert.True(t, analysis.Fallback)
	assert.InDelta(t, 0.4, analysis.Confidence, 0.0001)
	assert.Contains(t, analysis.StrategicSummary, "fallback: true")
	assert.Len(t, analysis.Recommendations, 2)
}

func TestAnalyzeFallbackOnBadJSON(t *testing.T) {
	stub := &countingLLM{content: "I cannot answer in JSON, sorry."}
	a := NewStrategicAnalyzer(stub, nil, 0, zerolog.Nop())

	analysis, err := a.Analyze(context.Background(), strategicRequest(), nil)
	require.NoError(t, err)
	assert.True(t, analysis.Fallback)
}

func TestDerivedSections(t *testing.T) {
	a := NewStrategicAnalyzer(nil, nil, 0, zerolog.Nop())
	agents := []agent.RegistryEntry{
		{AgentID: "market_agent", Type: agent.TypeMarket},
		{AgentID: "logistics_agent", Type: agent.TypeLogistics},
	}

	analysis, err := a.Analyze(context.Background(), strategicRequest(), agents)
	require.NoError(t, err)

	allocation := analysis.ResourceAllocation
	budgets, ok := allocation["budget_split"].(map[string]float64)
	require.True(t, ok)
	assert.InDelta(t, 10000, budgets["grow revenue"], 0.0001)
	assert.Equal(t, 8, allocation["timeline_weeks"])

	assert.Equal(t, "medium", analysis.RiskAssessment["severity"])

	require.Len(t, analysis.CoordinationPlan, 2)
	assert.Contains(t, analysis.CoordinationPlan["market_agent"][0], "pricing")
	assert.Contains(t, analysis.CoordinationPlan["logistics_agent"][0], "carrier")
}

func TestRiskSeverityBands(t *testing.T) {
	low := strategicRequest()
	low.Budget = 500
	assert.Equal(t, "low", deriveRiskAssessment(low)["severity"])

	high := strategicRequest()
	high.Budget = 75000
	assert.Equal(t, "high", deriveRiskAssessment(high)["severity"])
}

func TestRedisCacheSharedAcrossAnalyzers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	stub1 := &countingLLM{content: analysisJSON}
	a1 := NewStrategicAnalyzer(stub1, client, time.Minute, zerolog.Nop())
	_, err := a1.Analyze(ctx, strategicRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), stub1.calls.Load())

	// a fresh analyzer with an empty memory cache reads the redis entry
	stub2 := &countingLLM{content: analysisJSON}
	a2 := NewStrategicAnalyzer(stub2, client, time.Minute, zerolog.Nop())
	analysis, err := a2.Analyze(ctx, strategicRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stub2.calls.Load())
	assert.Equal(t, "Expand eBay listings into adjacent categories", analysis.StrategicSummary)
}

func TestCacheKeyStability(t *testing.T) {
	ctx1 := map[string]interface{}{"a": 1, "b": "x"}
	ctx2 := map[string]interface{}{"b": "x", "a": 1}
	assert.Equal(t, CacheKey("t", ctx1), CacheKey("t", ctx2))
	assert.NotEqual(t, CacheKey("t", ctx1), CacheKey("u", ctx1))
}

func TestExecutiveAnalyzeWithoutAnalyzer(t *testing.T) {
	e := New(nil, zerolog.Nop())
	_, err := e.AnalyzeStrategicSituation(context.Background(), strategicRequest())
	assert.Error(t, err)
}

func TestExecutiveAnalyzeUsesRegistry(t *testing.T) {
	a := NewStrategicAnalyzer(nil, nil, 0, zerolog.Nop())
	e := New(a, zerolog.Nop())
	e.RegisterAgent(agent.RegistryEntry{AgentID: "content_agent", Type: agent.TypeContent})

	analysis, err := e.AnalyzeStrategicSituation(context.Background(), strategicRequest())
	require.NoError(t, err)
	assert.Contains(t, analysis.CoordinationPlan, "content_agent")
}
