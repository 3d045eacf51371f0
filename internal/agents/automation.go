package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// RepricingRequest asks for price adjustment proposals for a set of SKUs
type RepricingRequest struct {
	SKUs         []string                `json:"skus"`
	Marketplace  marketplace.Marketplace `json:"marketplace"`
	MaxChangePct float64                 `json:"max_change_pct,omitempty"`
}

// PriceProposal is one proposed SKU price change
type PriceProposal struct {
	SKU          string          `json:"sku"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	NewPrice     decimal.Decimal `json:"new_price"`
	ChangePct    float64         `json:"change_pct"`
	Trend        string          `json:"trend"`
}

// RepricingResult always validates; SKUs without market data are skipped
// and confidence drops accordingly.
type RepricingResult struct {
	Proposals       []PriceProposal `json:"proposals"`
	SkippedSKUs     []string        `json:"skipped_skus,omitempty"`
	ConfidenceScore float64         `json:"confidence_score"`
	Reasoning       string          `json:"reasoning"`
}

// CurrentPriceProvider supplies the live listing price for a SKU
type CurrentPriceProvider interface {
	CurrentPrice(ctx context.Context, sku string, m marketplace.Marketplace) (decimal.Decimal, error)
}

// ResponseSink receives the agent responses an automation run produces,
// normally the approval router.
type ResponseSink func(ctx context.Context, resp *agent.Response) error

// AutomationAgent proposes scheduled repricing runs. Proposals that move a
// price by more than maxChangePct always require approval.
type AutomationAgent struct {
	id     string
	market *MarketAgent
	prices CurrentPriceProvider
	log    zerolog.Logger

	mu      sync.Mutex
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// defaultMaxChangePct bounds a single automated price move
const defaultMaxChangePct = 10.0

func NewAutomationAgent(market *MarketAgent, prices CurrentPriceProvider, log zerolog.Logger) *AutomationAgent {
	return &AutomationAgent{
		id:     "automation_agent",
		market: market,
		prices: prices,
		log:    log.With().Str("agent", "automation_agent").Logger(),
	}
}

func (a *AutomationAgent) AgentID() string       { return a.id }
func (a *AutomationAgent) AgentType() agent.Type { return agent.TypeAutomation }
func (a *AutomationAgent) Capabilities() []string {
	return []string{"scheduled_repricing", "pricing_adjustment"}
}

// Pause stops scheduled runs from producing proposals without tearing the
// loop down. Resume reverses it.
func (a *AutomationAgent) Pause() {
	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
	a.log.Info().Msg("Automation paused")
}

func (a *AutomationAgent) Resume() {
	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
	a.log.Info().Msg("Automation resumed")
}

func (a *AutomationAgent) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// ProposeRepricing evaluates each SKU's market trend and proposes bounded
// price moves. SKUs without price data are skipped, never failed.
func (a *AutomationAgent) ProposeRepricing(ctx context.Context, req RepricingRequest) (*RepricingResult, error) {
	if len(req.SKUs) == 0 {
		return nil, fmt.Errorf("skus are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	maxChange := req.MaxChangePct
	if maxChange <= 0 {
		maxChange = defaultMaxChangePct
	}

	result := &RepricingResult{}
	for _, sku := range req.SKUs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		proposal, ok := a.proposeOne(ctx, sku, req.Marketplace, maxChange)
		if !ok {
			result.SkippedSKUs = append(result.SkippedSKUs, sku)
			continue
		}
		result.Proposals = append(result.Proposals, proposal)
	}

	total := len(req.SKUs)
	result.ConfidenceScore = 0.8 * float64(len(result.Proposals)) / float64(total)
	result.Reasoning = fmt.Sprintf("Proposed %d of %d repricings on %s", len(result.Proposals), total, req.Marketplace)
	if len(result.SkippedSKUs) > 0 {
		result.Reasoning = fmt.Sprintf("%s; fallback: true (%d skus lacked price data)", result.Reasoning, len(result.SkippedSKUs))
	}
	return result, nil
}

func (a *AutomationAgent) proposeOne(ctx context.Context, sku string, m marketplace.Marketplace, maxChange float64) (PriceProposal, bool) {
	if a.prices == nil || a.market == nil {
		return PriceProposal{}, false
	}
	current, err := a.prices.CurrentPrice(ctx, sku, m)
	if err != nil || current.IsZero() {
		return PriceProposal{}, false
	}

	analysis, err := a.market.AnalyzeMarket(ctx, MarketAnalysisRequest{ProductQuery: sku, TargetMarketplace: m})
	if err != nil {
		return PriceProposal{}, false
	}

	var changePct float64
	switch analysis.PriceTrend {
	case "rising":
		changePct = 5.0
	case "falling":
		changePct = -5.0
	default:
		changePct = 0
	}
	if changePct > maxChange {
		changePct = maxChange
	}
	if changePct < -maxChange {
		changePct = -maxChange
	}

	factor := decimal.NewFromFloat(1 + changePct/100)
	return PriceProposal{
		SKU:          sku,
		CurrentPrice: current,
		NewPrice:     current.Mul(factor).Round(2),
		ChangePct:    changePct,
		Trend:        analysis.PriceTrend,
	}, true
}

// Start launches the scheduled repricing loop. Idempotent; a second Start
// is a no-op until Stop.
func (a *AutomationAgent) Start(ctx context.Context, interval time.Duration, req RepricingRequest, sink ResponseSink) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.started = true
	a.mu.Unlock()

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				a.runOnce(runCtx, req, sink)
			}
		}
	}()
	a.log.Info().Dur("interval", interval).Msg("Automation loop started")
}

// Stop cancels the loop and waits for it to exit
func (a *AutomationAgent) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	cancel, done := a.cancel, a.done
	a.started = false
	a.mu.Unlock()

	cancel()
	<-done
	a.log.Info().Msg("Automation loop stopped")
}

func (a *AutomationAgent) runOnce(ctx context.Context, req RepricingRequest, sink ResponseSink) {
	if a.Paused() || sink == nil {
		return
	}
	resp, err := a.repricingResponse(ctx, req, "", "automation")
	if err != nil {
		a.log.Warn().Err(err).Msg("Scheduled repricing run failed")
		return
	}
	if err := sink(ctx, resp); err != nil {
		a.log.Warn().Err(err).Msg("Failed to submit repricing proposals")
	}
}

func (a *AutomationAgent) repricingResponse(ctx context.Context, req RepricingRequest, conversationID, userID string) (*agent.Response, error) {
	start := time.Now()
	result, err := a.ProposeRepricing(ctx, req)
	if err != nil {
		return nil, err
	}

	proposals := make([]map[string]interface{}, 0, len(result.Proposals))
	for _, p := range result.Proposals {
		proposals = append(proposals, map[string]interface{}{
			"sku":        p.SKU,
			"new_price":  p.NewPrice.String(),
			"change_pct": p.ChangePct,
		})
	}
	return &agent.Response{
		Content:      result.Reasoning,
		AgentType:    agent.TypeAutomation,
		Confidence:   result.ConfidenceScore,
		ResponseTime: time.Since(start).Seconds(),
		Metadata: map[string]interface{}{
			"conversation_id":   conversationID,
			"user_id":           userID,
			"requires_approval": len(result.Proposals) > 0,
			"request_type":      "pricing",
			"data": map[string]interface{}{
				"proposals": proposals,
			},
		},
	}, nil
}

// HandleMessage treats the message as a single SKU repricing request
func (a *AutomationAgent) HandleMessage(ctx context.Context, message, conversationID, userID string) (*agent.Response, error) {
	return a.repricingResponse(ctx, RepricingRequest{
		SKUs:        []string{message},
		Marketplace: marketplace.Ebay,
	}, conversationID, userID)
}
