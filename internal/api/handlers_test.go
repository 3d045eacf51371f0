package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/analytics"
	"github.com/brendan721/Flipsync-Final-sub011/internal/decision"
	"github.com/brendan721/Flipsync-Final-sub011/internal/executive"
	"github.com/brendan721/Flipsync-Final-sub011/internal/inventory"
	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
	"github.com/brendan721/Flipsync-Final-sub011/internal/orders"
)

type stubDecisionStore struct {
	history []*decision.Decision
}

func (s *stubDecisionStore) GetHistory(filters *decision.HistoryFilters) []*decision.Decision {
	out := make([]*decision.Decision, 0, len(s.history))
	for _, d := range s.history {
		if filters != nil {
			if filters.Status != "" && d.Metadata.Status != filters.Status {
				continue
			}
			if filters.Type != "" && d.Type != filters.Type {
				continue
			}
			if filters.MinConfidence > 0 && d.Confidence < filters.MinConfidence {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func (s *stubDecisionStore) GetDecision(id string) (*decision.Decision, error) {
	for _, d := range s.history {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, errors.New("decision " + id + " not found")
}

func (s *stubDecisionStore) GetStats() decision.Stats {
	return decision.Stats{TotalDecisions: len(s.history), AverageConfidence: 0.8}
}

type stubOrderStore struct {
	orders []orders.UnifiedOrder
}

func (s *stubOrderStore) List() []orders.UnifiedOrder { return s.orders }

func (s *stubOrderStore) Get(orderID string) (orders.UnifiedOrder, bool) {
	for _, o := range s.orders {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return orders.UnifiedOrder{}, false
}

type stubDirectory struct {
	entries []agent.RegistryEntry
}

func (s *stubDirectory) Agents() []agent.RegistryEntry { return s.entries }

func (s *stubDirectory) MonitorAgentPerformance() executive.PerformanceReport {
	return executive.PerformanceReport{OverallHealth: "good", AverageSuccessRate: 0.92}
}

type stubAutomation struct {
	paused bool
}

func (s *stubAutomation) Pause()       { s.paused = true }
func (s *stubAutomation) Resume()      { s.paused = false }
func (s *stubAutomation) Paused() bool { return s.paused }

type stubApprovals struct {
	approved []string
	rejected []string
	err      error
}

func (s *stubApprovals) ApproveDecision(ctx context.Context, approvalID, approver string) error {
	if s.err != nil {
		return s.err
	}
	s.approved = append(s.approved, approvalID)
	return nil
}

func (s *stubApprovals) RejectDecision(ctx context.Context, approvalID, approver, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.rejected = append(s.rejected, approvalID)
	return nil
}

type stubAnalytics struct {
	snap analytics.Snapshot
}

func (s *stubAnalytics) Snapshot() analytics.Snapshot { return s.snap }

type stubSpecialist struct {
	lastMessage string
	err         error
}

func (s *stubSpecialist) HandleMessage(ctx context.Context, message, conversationID, userID string) (*agent.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastMessage = message
	return &agent.Response{Content: "analysis of " + message, AgentType: agent.TypeMarket, Confidence: 0.8}, nil
}

func testServer(t *testing.T) (*Server, *stubAutomation, *stubApprovals) {
	t.Helper()

	d1 := decision.New(decision.TypeOptimization, "reprice", 0.9, "trend rising")
	d2 := decision.New(decision.TypeCustom, "relist", 0.4, "low stock")
	d2.Metadata.Status = decision.StatusRejected

	store := inventory.NewStore()
	store.Put(inventory.Item{
		SKU:        "SKU-1",
		Name:       "Widget",
		Price:      decimal.RequireFromString("19.99"),
		Allocation: map[marketplace.Marketplace]int{marketplace.Ebay: 5},
	})

	automation := &stubAutomation{}
	approvals := &stubApprovals{}

	s := NewServer(Config{
		Decisions: &stubDecisionStore{history: []*decision.Decision{d1, d2}},
		Orders: &stubOrderStore{orders: []orders.UnifiedOrder{
			{OrderID: "ord-1", Marketplace: marketplace.Ebay, Status: orders.StatusConfirmed, OrderTotal: decimal.RequireFromString("50.00"), CreatedAt: time.Now()},
			{OrderID: "ord-2", Marketplace: marketplace.Amazon, Status: orders.StatusShipped, OrderTotal: decimal.RequireFromString("250.00"), CreatedAt: time.Now()},
		}},
		Agents: &stubDirectory{entries: []agent.RegistryEntry{
			{AgentID: "market-1", Type: agent.TypeMarket, Status: agent.StatusActive},
		}},
		Automation: automation,
		Approvals:  approvals,
		Analytics:  &stubAnalytics{snap: analytics.Snapshot{PredictedOrders: 3.5}},
		Inventory:  store,
	})
	return s, automation, approvals
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FlipSync API", decodeBody(t, w)["service"])

	w = doRequest(s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusReportsComponents(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["automation_paused"])

	components := body["components"].(map[string]interface{})
	orderComponent := components["orders"].(map[string]interface{})
	assert.Equal(t, "configured", orderComponent["status"])
}

func TestPauseAndResume(t *testing.T) {
	s, automation, _ := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, automation.paused)

	w = doRequest(s, http.MethodPost, "/api/v1/resume", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, automation.paused)
}

func TestPauseWithoutAutomation(t *testing.T) {
	s := NewServer(Config{})
	w := doRequest(s, http.MethodPost, "/api/v1/pause", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListDecisionsWithFilters(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/decisions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/decisions?min_confidence=0.5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/decisions?status=rejected", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/decisions?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/decisions?min_confidence=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDecision(t *testing.T) {
	s, _, _ := testServer(t)

	list := doRequest(s, http.MethodGet, "/api/v1/decisions", "")
	var listed struct {
		Decisions []struct {
			ID string `json:"decision_id"`
		} `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listed))
	require.NotEmpty(t, listed.Decisions)

	w := doRequest(s, http.MethodGet, "/api/v1/decisions/"+listed.Decisions[0].ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/decisions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecisionStats(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/decisions/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["total_decisions"])
}

func TestApproveAndReject(t *testing.T) {
	s, _, approvals := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/approvals/ap-1/approve", `{"approver":"ops"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ap-1"}, approvals.approved)

	w = doRequest(s, http.MethodPost, "/api/v1/approvals/ap-2/reject", `{"approver":"ops","reason":"too risky"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ap-2"}, approvals.rejected)

	// missing approver
	w = doRequest(s, http.MethodPost, "/api/v1/approvals/ap-3/approve", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	approvals.err = errors.New("approval ap-4 not found")
	w = doRequest(s, http.MethodPost, "/api/v1/approvals/ap-4/approve", `{"approver":"ops"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndGetOrders(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/orders?marketplace=ebay", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/orders?status=shipped", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/orders/ord-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/orders/ord-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAgentsAndPerformance(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/agents", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/agents/performance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", decodeBody(t, w)["overall_health"])
}

func TestAgentMessageDispatch(t *testing.T) {
	specialist := &stubSpecialist{}
	s := NewServer(Config{Specialists: map[string]SpecialistMessenger{"market_agent": specialist}})

	w := doRequest(s, http.MethodPost, "/api/v1/agents/market_agent/message", `{"message":"price check for SKU-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "price check for SKU-1", specialist.lastMessage)
	assert.Equal(t, "analysis of price check for SKU-1", decodeBody(t, w)["content"])

	w = doRequest(s, http.MethodPost, "/api/v1/agents/nope/message", `{"message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// missing message
	w = doRequest(s, http.MethodPost, "/api/v1/agents/market_agent/message", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	specialist.err = errors.New("provider down")
	w = doRequest(s, http.MethodPost, "/api/v1/agents/market_agent/message", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	bare := NewServer(Config{})
	w = doRequest(bare, http.MethodPost, "/api/v1/agents/market_agent/message", `{"message":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInventoryEndpoints(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/inventory", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = doRequest(s, http.MethodGet, "/api/v1/inventory/SKU-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Widget", decodeBody(t, w)["name"])

	w = doRequest(s, http.MethodGet, "/api/v1/inventory/SKU-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyticsEndpoint(t *testing.T) {
	s, _, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/analytics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 3.5, decodeBody(t, w)["predicted_orders"], 0.0001)
}
