package executive

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/llm"
)

// DefaultCacheTTL bounds how long a strategic analysis stays valid
const DefaultCacheTTL = 30 * time.Minute

// MarketIntelligenceSource supplies current market observations for the
// analysis, normally the managed market agent.
type MarketIntelligenceSource interface {
	GatherMarketIntelligence(ctx context.Context) (map[string]interface{}, error)
}

// StrategicRequest asks for a strategic analysis of a business situation
type StrategicRequest struct {
	DecisionType    string                 `json:"decision_type"`
	BusinessContext map[string]interface{} `json:"business_context"`
	Objectives      []string               `json:"objectives,omitempty"`
	Budget          float64                `json:"budget,omitempty"`
	TimelineWeeks   int                    `json:"timeline_weeks,omitempty"`
}

// llmAnalysis is the JSON shape the LLM is prompted to produce
type llmAnalysis struct {
	StrategicSummary   string             `json:"strategic_summary"`
	Recommendations    []string           `json:"recommendations"`
	ImplementationPlan []string           `json:"implementation_plan"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	Confidence         float64            `json:"confidence"`
	RiskFactors        []string           `json:"risk_factors"`
}

// StrategicAnalysis is the composite result: the LLM (or fallback) analysis
// plus the derived allocation, risk and coordination sections.
type StrategicAnalysis struct {
	DecisionType       string                            `json:"decision_type"`
	StrategicSummary   string                            `json:"strategic_summary"`
	Recommendations    []string                          `json:"recommendations"`
	ImplementationPlan []string                          `json:"implementation_plan"`
	PerformanceMetrics map[string]float64                `json:"performance_metrics"`
	Confidence         float64                           `json:"confidence"`
	RiskFactors        []string                          `json:"risk_factors"`
	ResourceAllocation map[string]interface{}            `json:"resource_allocation"`
	RiskAssessment     map[string]interface{}            `json:"risk_assessment"`
	CoordinationPlan   map[string][]string               `json:"agent_coordination_plan"`
	Fallback           bool                              `json:"fallback,omitempty"`
	GeneratedAt        time.Time                         `json:"generated_at"`
}

type cacheEntry struct {
	analysis *StrategicAnalysis
	expires  time.Time
}

// StrategicAnalyzer runs the analysis workflow with a TTL cache. Concurrent
// requests for the same key are single-flight: only the first reaches the
// LLM. A redis client, when configured, provides a shared second-level
// cache across processes.
type StrategicAnalyzer struct {
	client llm.Client
	redis  *redis.Client
	market MarketIntelligenceSource
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	group singleflight.Group
	log   zerolog.Logger
}

// NewStrategicAnalyzer creates an analyzer. The LLM client and redis client
// are both optional; without an LLM every analysis uses the deterministic
// fallback. Zero ttl selects the default.
func NewStrategicAnalyzer(client llm.Client, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *StrategicAnalyzer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &StrategicAnalyzer{
		client: client,
		redis:  rdb,
		ttl:    ttl,
		cache:  make(map[string]cacheEntry),
		log:    log.With().Str("component", "strategic_analyzer").Logger(),
	}
}

// SetMarketIntelligence attaches a market data source whose observations
// are coalesced into the business context before each analysis
func (a *StrategicAnalyzer) SetMarketIntelligence(source MarketIntelligenceSource) {
	a.market = source
}

// CacheKey derives the cache key from the decision type and a stable hash
// of the business context.
func CacheKey(decisionType string, businessContext map[string]interface{}) string {
	h := fnv.New64a()
	for _, k := range sortedKeys(businessContext) {
		h.Write([]byte(k))
		h.Write([]byte(fmt.Sprintf("%v", businessContext[k])))
	}
	return fmt.Sprintf("strategy:%s:%x", decisionType, h.Sum64())
}

// Analyze returns a cached analysis when fresh, otherwise runs the full
// workflow exactly once per key.
func (a *StrategicAnalyzer) Analyze(ctx context.Context, req StrategicRequest, agents []agent.RegistryEntry) (*StrategicAnalysis, error) {
	key := CacheKey(req.DecisionType, req.BusinessContext)

	if cached := a.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	result, err, _ := a.group.Do(key, func() (interface{}, error) {
		// re-check under the flight: a concurrent caller may have filled it
		if cached := a.lookup(ctx, key); cached != nil {
			return cached, nil
		}
		analysis, err := a.analyze(ctx, req, agents)
		if err != nil {
			return nil, err
		}
		a.store(ctx, key, analysis)
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*StrategicAnalysis), nil
}

func (a *StrategicAnalyzer) lookup(ctx context.Context, key string) *StrategicAnalysis {
	a.mu.Lock()
	entry, ok := a.cache[key]
	if ok && time.Now().Before(entry.expires) {
		a.mu.Unlock()
		return entry.analysis
	}
	a.mu.Unlock()

	if a.redis == nil {
		return nil
	}
	raw, err := a.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var analysis StrategicAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached analysis")
		return nil
	}
	a.mu.Lock()
	a.cache[key] = cacheEntry{analysis: &analysis, expires: time.Now().Add(a.ttl)}
	a.mu.Unlock()
	return &analysis
}

func (a *StrategicAnalyzer) store(ctx context.Context, key string, analysis *StrategicAnalysis) {
	a.mu.Lock()
	a.cache[key] = cacheEntry{analysis: analysis, expires: time.Now().Add(a.ttl)}
	a.mu.Unlock()

	if a.redis == nil {
		return
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return
	}
	if err := a.redis.Set(ctx, key, raw, a.ttl).Err(); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("Failed to cache analysis in redis")
	}
}

func (a *StrategicAnalyzer) analyze(ctx context.Context, req StrategicRequest, agents []agent.RegistryEntry) (*StrategicAnalysis, error) {
	req.BusinessContext = a.gatherIntelligence(ctx, req.BusinessContext)
	base := a.runLLM(ctx, req)

	analysis := &StrategicAnalysis{
		DecisionType:       req.DecisionType,
		StrategicSummary:   base.StrategicSummary,
		Recommendations:    base.Recommendations,
		ImplementationPlan: base.ImplementationPlan,
		PerformanceMetrics: base.PerformanceMetrics,
		Confidence:         base.Confidence,
		RiskFactors:        base.RiskFactors,
		ResourceAllocation: deriveResourceAllocation(req),
		RiskAssessment:     deriveRiskAssessment(req),
		CoordinationPlan:   deriveCoordinationPlan(req, agents),
		Fallback:           base.fallback,
		GeneratedAt:        time.Now().UTC(),
	}
	return analysis, nil
}

type llmResult struct {
	llmAnalysis
	fallback bool
}

// gatherIntelligence coalesces market observations with the caller-provided
// financial and operational metrics. Caller keys are preserved as-is; the
// observations land under "market_intelligence". An unavailable source
// degrades to the provided context alone.
func (a *StrategicAnalyzer) gatherIntelligence(ctx context.Context, provided map[string]interface{}) map[string]interface{} {
	if a.market == nil {
		return provided
	}
	observed, err := a.market.GatherMarketIntelligence(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Market intelligence unavailable, analyzing without it")
		return provided
	}
	if len(observed) == 0 {
		return provided
	}
	merged := make(map[string]interface{}, len(provided)+1)
	for k, v := range provided {
		merged[k] = v
	}
	merged["market_intelligence"] = observed
	return merged
}

func (a *StrategicAnalyzer) runLLM(ctx context.Context, req StrategicRequest) llmResult {
	if a.client == nil {
		return fallbackAnalysis(req)
	}

	contextJSON, _ := json.Marshal(req.BusinessContext)
	prompt := fmt.Sprintf(`Analyze the following business situation for a %s decision.

Business context: %s
Objectives: %s
Budget: $%.2f
Timeline: %d weeks

Respond with JSON only:
{"strategic_summary": string, "recommendations": [string], "implementation_plan": [string], "performance_metrics": {string: number}, "confidence": number, "risk_factors": [string]}`,
		req.DecisionType, contextJSON, strings.Join(req.Objectives, ", "), req.Budget, req.TimelineWeeks)

	resp, err := a.client.Generate(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: "You are the strategic planning engine of a cross-marketplace e-commerce platform. Answer with strict JSON.",
	})
	if err != nil {
		a.log.Warn().Err(err).Str("decision_type", req.DecisionType).Msg("LLM unavailable, using fallback analysis")
		return fallbackAnalysis(req)
	}

	var parsed llmAnalysis
	if err := llm.ParseJSONResponse(resp.Content, &parsed); err != nil {
		a.log.Warn().Err(err).Msg("Unparseable LLM analysis, using fallback")
		return fallbackAnalysis(req)
	}
	return llmResult{llmAnalysis: parsed}
}

// fallbackAnalysis is the deterministic template used when no LLM answer
// is available. Confidence is reduced so downstream consumers can tell.
func fallbackAnalysis(req StrategicRequest) llmResult {
	objectives := req.Objectives
	if len(objectives) == 0 {
		objectives = []string{"maintain current operations"}
	}
	recommendations := make([]string, 0, len(objectives))
	plan := make([]string, 0, len(objectives))
	for i, obj := range objectives {
		recommendations = append(recommendations, fmt.Sprintf("Prioritize objective: %s", obj))
		plan = append(plan, fmt.Sprintf("Phase %d: %s", i+1, obj))
	}
	return llmResult{
		llmAnalysis: llmAnalysis{
			StrategicSummary:   fmt.Sprintf("Template analysis for %s based on %d objectives (fallback: true)", req.DecisionType, len(objectives)),
			Recommendations:    recommendations,
			ImplementationPlan: plan,
			PerformanceMetrics: map[string]float64{"objectives": float64(len(objectives))},
			Confidence:         0.4,
			RiskFactors:        []string{"analysis generated without model input"},
		},
		fallback: true,
	}
}

// deriveResourceAllocation splits budget, team focus and timeline across
// the stated objectives.
func deriveResourceAllocation(req StrategicRequest) map[string]interface{} {
	objectives := req.Objectives
	if len(objectives) == 0 {
		objectives = []string{"general"}
	}
	perObjective := req.Budget / float64(len(objectives))
	budgets := make(map[string]float64, len(objectives))
	for _, obj := range objectives {
		budgets[obj] = perObjective
	}

	weeks := req.TimelineWeeks
	if weeks <= 0 {
		weeks = 4 * len(objectives)
	}
	return map[string]interface{}{
		"budget_split":   budgets,
		"team_focus":     objectives,
		"timeline_weeks": weeks,
	}
}

// deriveRiskAssessment ties severity to budget bands
func deriveRiskAssessment(req StrategicRequest) map[string]interface{} {
	severity := "low"
	switch {
	case req.Budget >= 50000:
		severity = "high"
	case req.Budget >= 10000:
		severity = "medium"
	}
	return map[string]interface{}{
		"severity":         severity,
		"budget":           req.Budget,
		"mitigation_hint":  "stage spend against measurable checkpoints",
		"objectives_count": len(req.Objectives),
	}
}

// deriveCoordinationPlan assigns objective-aligned tasks to each managed
// agent by type.
func deriveCoordinationPlan(req StrategicRequest, agents []agent.RegistryEntry) map[string][]string {
	plan := make(map[string][]string, len(agents))
	for _, entry := range agents {
		var tasks []string
		switch entry.Type {
		case agent.TypeMarket:
			tasks = append(tasks, "refresh competitive pricing analysis")
		case agent.TypeContent:
			tasks = append(tasks, "update listing content for priority SKUs")
		case agent.TypeLogistics:
			tasks = append(tasks, "re-evaluate carrier mix against current volumes")
		case agent.TypeAutomation:
			tasks = append(tasks, "schedule automated repricing runs")
		default:
			tasks = append(tasks, "review strategic objectives")
		}
		for _, obj := range req.Objectives {
			tasks = append(tasks, fmt.Sprintf("align work with objective: %s", obj))
		}
		plan[entry.AgentID] = tasks
	}
	return plan
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
