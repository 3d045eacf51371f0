package llm

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultRequestCeiling is the maximum acceptable cost for a single
// generation request, in USD.
var DefaultRequestCeiling = decimal.NewFromFloat(0.05)

// DefaultDailyBudget caps total daily spend, in USD
var DefaultDailyBudget = decimal.NewFromFloat(2.00)

// CostMetrics exposes spend counters to Prometheus
type CostMetrics struct {
	RequestsTotal   prometheus.Counter
	CeilingExceeded prometheus.Counter
	SpendTotal      prometheus.Counter
	TokensTotal     prometheus.Counter
}

var (
	costMetrics     *CostMetrics
	costMetricsOnce sync.Once
)

func getOrCreateCostMetrics() *CostMetrics {
	costMetricsOnce.Do(func() {
		costMetrics = &CostMetrics{
			RequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total LLM generation requests recorded by the cost tracker",
			}),
			CeilingExceeded: promauto.NewCounter(prometheus.CounterOpts{
				Name: "llm_cost_ceiling_exceeded_total",
				Help: "Requests whose estimated cost exceeded the per-request ceiling",
			}),
			SpendTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "llm_spend_usd_total",
				Help: "Cumulative estimated LLM spend in USD",
			}),
			TokensTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Cumulative tokens consumed across LLM requests",
			}),
		}
	})
	return costMetrics
}

// CostTracker accumulates per-request costs against a per-request ceiling
// and a rolling daily budget. The daily window resets at UTC midnight.
type CostTracker struct {
	mu             sync.Mutex
	requestCeiling decimal.Decimal
	dailyBudget    decimal.Decimal
	daySpend       decimal.Decimal
	day            time.Time
	requests       int
	tokens         int

	metrics *CostMetrics
	log     zerolog.Logger
}

// NewCostTracker creates a cost tracker. Zero ceiling or budget selects the
// defaults.
func NewCostTracker(requestCeiling, dailyBudget decimal.Decimal, log zerolog.Logger) *CostTracker {
	if requestCeiling.IsZero() {
		requestCeiling = DefaultRequestCeiling
	}
	if dailyBudget.IsZero() {
		dailyBudget = DefaultDailyBudget
	}
	return &CostTracker{
		requestCeiling: requestCeiling,
		dailyBudget:    dailyBudget,
		day:            time.Now().UTC().Truncate(24 * time.Hour),
		metrics:        getOrCreateCostMetrics(),
		log:            log.With().Str("component", "llm_cost_tracker").Logger(),
	}
}

// Record accounts for one completed request. Exceeding the per-request
// ceiling or daily budget is logged and counted but never blocks the
// response that already happened.
func (t *CostTracker) Record(resp *Response) {
	cost := decimal.NewFromFloat(resp.CostEstimate)

	t.mu.Lock()
	t.rollDayLocked()
	t.requests++
	t.tokens += resp.TokensUsed
	t.daySpend = t.daySpend.Add(cost)
	overCeiling := cost.GreaterThan(t.requestCeiling)
	overBudget := t.daySpend.GreaterThan(t.dailyBudget)
	daySpend := t.daySpend
	t.mu.Unlock()

	t.metrics.RequestsTotal.Inc()
	t.metrics.SpendTotal.Add(resp.CostEstimate)
	t.metrics.TokensTotal.Add(float64(resp.TokensUsed))

	if overCeiling {
		t.metrics.CeilingExceeded.Inc()
		t.log.Warn().
			Str("model", resp.Model).
			Str("cost", cost.StringFixed(4)).
			Str("ceiling", t.requestCeiling.StringFixed(4)).
			Msg("LLM request cost exceeded per-request ceiling")
	}
	if overBudget {
		t.log.Warn().
			Str("day_spend", daySpend.StringFixed(4)).
			Str("budget", t.dailyBudget.StringFixed(4)).
			Msg("Daily LLM budget exceeded")
	}
}

// WithinBudget reports whether the daily budget still has headroom
func (t *CostTracker) WithinBudget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDayLocked()
	return t.daySpend.LessThan(t.dailyBudget)
}

// DaySpend returns today's accumulated spend
func (t *CostTracker) DaySpend() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDayLocked()
	return t.daySpend
}

// Totals returns request and token counters for the current day
func (t *CostTracker) Totals() (requests, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDayLocked()
	return t.requests, t.tokens
}

func (t *CostTracker) rollDayLocked() {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if today.After(t.day) {
		t.day = today
		t.daySpend = decimal.Zero
		t.requests = 0
		t.tokens = 0
	}
}

// TrackedClient wraps a Client so every successful generation is recorded
// by the cost tracker.
type TrackedClient struct {
	inner   Client
	tracker *CostTracker
}

// NewTrackedClient wraps the given client with cost accounting
func NewTrackedClient(inner Client, tracker *CostTracker) *TrackedClient {
	return &TrackedClient{inner: inner, tracker: tracker}
}

// Generate delegates to the wrapped client and records the cost
func (c *TrackedClient) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.tracker.Record(resp)
	return resp, nil
}
