package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// FulfillmentResult reports the outcome of FulfillOrder and ProcessReturn.
// Pre-condition violations are reported here, never as errors.
type FulfillmentResult struct {
	Success bool     `json:"success"`
	OrderID string   `json:"order_id"`
	Status  Status   `json:"status,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// urgentThreshold promotes high-value orders to the front of the queue
var urgentThreshold = decimal.NewFromInt(200)

// Manager ingests marketplace orders into the unified store and drives
// fulfillment. Operations on a single order are serialized through a
// per-order lock; distinct orders proceed in parallel. Readers clone
// under the same per-order lock so they never observe a mutation in
// progress.
type Manager struct {
	adapters *marketplace.Registry
	queue    *FulfillmentQueue
	interval time.Duration
	sellerID string
	log      zerolog.Logger

	mu      sync.Mutex
	orders  map[string]*UnifiedOrder
	byRef   map[string]string // marketplace order id -> internal id
	locks   map[string]*sync.Mutex
	cursors map[marketplace.Marketplace]string
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(adapters *marketplace.Registry, queue *FulfillmentQueue, sellerID string, interval time.Duration, log zerolog.Logger) *Manager {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if queue == nil {
		queue = NewFulfillmentQueue(0)
	}
	return &Manager{
		adapters: adapters,
		queue:    queue,
		interval: interval,
		sellerID: sellerID,
		orders:   make(map[string]*UnifiedOrder),
		byRef:    make(map[string]string),
		locks:    make(map[string]*sync.Mutex),
		cursors:  make(map[marketplace.Marketplace]string),
		log:      log.With().Str("component", "order_manager").Logger(),
	}
}

// Start launches one ingestion loop per registered marketplace. Idempotent.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true

	for _, mp := range m.adapters.Marketplaces() {
		mp := mp
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(m.interval)
			defer ticker.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					if _, err := m.IngestMarketplace(runCtx, mp); err != nil && runCtx.Err() == nil {
						m.log.Warn().Err(err).Str("marketplace", string(mp)).Msg("Order ingestion failed")
					}
				}
			}
		}()
	}
	m.log.Info().Msg("Order ingestion loops started")
}

// Stop cancels the ingestion loops and waits for them to exit
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.started = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.log.Info().Msg("Order ingestion loops stopped")
}

// IngestMarketplace fetches new raw orders from one adapter and unifies
// them. New orders start in CONFIRMED; urgent orders queue at the front.
func (m *Manager) IngestMarketplace(ctx context.Context, mp marketplace.Marketplace) (int, error) {
	adapter, err := m.adapters.Get(mp)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	cursor := m.cursors[mp]
	m.mu.Unlock()

	raws, next, err := adapter.FetchOrdersSince(ctx, m.sellerID, cursor)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for _, raw := range raws {
		order, isNew := m.unify(raw)
		if !isNew {
			continue
		}
		ingested++
		if err := m.queue.Enqueue(ctx, order.OrderID, order.Priority); err != nil {
			return ingested, err
		}
	}

	m.mu.Lock()
	m.cursors[mp] = next
	m.mu.Unlock()

	if ingested > 0 {
		m.log.Info().Str("marketplace", string(mp)).Int("orders", ingested).Msg("Orders ingested")
	}
	return ingested, nil
}

// unify converts a raw order, deduplicating on (marketplace, order id)
func (m *Manager) unify(raw marketplace.OrderRaw) (UnifiedOrder, bool) {
	ref := fmt.Sprintf("%s/%s", raw.Marketplace, raw.MarketplaceOrderID)

	m.mu.Lock()
	if id, ok := m.byRef[ref]; ok {
		existing, lock := m.orders[id], m.locks[id]
		m.mu.Unlock()
		return m.snapshot(lock, existing), false
	}
	defer m.mu.Unlock()

	items := make([]OrderItem, 0, len(raw.Items))
	for _, it := range raw.Items {
		items = append(items, OrderItem{SKU: it.SKU, Title: it.Title, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	priority := PriorityNormal
	if raw.OrderTotal.GreaterThanOrEqual(urgentThreshold) {
		priority = PriorityUrgent
	}

	now := time.Now().UTC()
	order := &UnifiedOrder{
		OrderID:            uuid.New().String(),
		MarketplaceOrderID: raw.MarketplaceOrderID,
		Marketplace:        raw.Marketplace,
		SellerID:           raw.SellerID,
		BuyerInfo:          raw.BuyerName,
		Items:              items,
		Shipping:           ShippingInfo{Address: raw.ShippingAddress},
		Status:             StatusConfirmed,
		Priority:           priority,
		FulfillmentMethod:  SelfFulfilled,
		OrderTotal:         raw.OrderTotal,
		Fees:               raw.Fees,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.orders[order.OrderID] = order
	m.byRef[ref] = order.OrderID
	m.locks[order.OrderID] = &sync.Mutex{}
	return order.clone(), true
}

// snapshot clones an order under its per-order lock, keeping readers
// consistent with the mutators that hold the same lock
func (m *Manager) snapshot(lock *sync.Mutex, order *UnifiedOrder) UnifiedOrder {
	lock.Lock()
	defer lock.Unlock()
	return order.clone()
}

// Get returns a copy of one order
func (m *Manager) Get(orderID string) (UnifiedOrder, bool) {
	m.mu.Lock()
	order, ok := m.orders[orderID]
	lock := m.locks[orderID]
	m.mu.Unlock()
	if !ok {
		return UnifiedOrder{}, false
	}
	return m.snapshot(lock, order), true
}

// List returns copies of every order, newest first
func (m *Manager) List() []UnifiedOrder {
	type entry struct {
		order *UnifiedOrder
		lock  *sync.Mutex
	}
	m.mu.Lock()
	entries := make([]entry, 0, len(m.orders))
	for id, order := range m.orders {
		entries = append(entries, entry{order: order, lock: m.locks[id]})
	}
	m.mu.Unlock()

	out := make([]UnifiedOrder, 0, len(entries))
	for _, e := range entries {
		out = append(out, m.snapshot(e.lock, e.order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Queue exposes the fulfillment queue
func (m *Manager) Queue() *FulfillmentQueue { return m.queue }

// orderLock returns the per-order mutex, serializing same-order operations
func (m *Manager) orderLock(orderID string) (*sync.Mutex, *UnifiedOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil, false
	}
	return m.locks[orderID], order, true
}

// FulfillOrder ships an order. Only legal from CONFIRMED or PROCESSING;
// SELF_FULFILLED requires tracking number and carrier. Violations come back
// in the result, never as an error.
func (m *Manager) FulfillOrder(ctx context.Context, orderID, trackingNumber, carrier, note string) (*FulfillmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, order, ok := m.orderLock(orderID)
	if !ok {
		return &FulfillmentResult{Success: false, OrderID: orderID, Errors: []string{fmt.Sprintf("Order not found: %s", orderID)}}, nil
	}
	lock.Lock()
	defer lock.Unlock()

	if order.Status != StatusConfirmed && order.Status != StatusProcessing {
		return &FulfillmentResult{
			Success: false,
			OrderID: orderID,
			Status:  order.Status,
			Errors:  []string{fmt.Sprintf("Order cannot be fulfilled in status: %s", order.Status)},
		}, nil
	}
	if order.FulfillmentMethod == SelfFulfilled && (trackingNumber == "" || carrier == "") {
		return &FulfillmentResult{
			Success: false,
			OrderID: orderID,
			Status:  order.Status,
			Errors:  []string{"tracking_number and carrier are required for SELF_FULFILLED orders"},
		}, nil
	}

	if adapter, err := m.adapters.Get(order.Marketplace); err == nil {
		if err := adapter.PostFulfillment(ctx, order.MarketplaceOrderID, trackingNumber, carrier); err != nil {
			return &FulfillmentResult{
				Success: false,
				OrderID: orderID,
				Status:  order.Status,
				Errors:  []string{fmt.Sprintf("marketplace rejected fulfillment: %v", err)},
			}, nil
		}
	}

	order.Shipping.TrackingNumber = trackingNumber
	order.Shipping.Carrier = carrier
	if err := order.setStatus(StatusShipped); err != nil {
		return nil, err
	}
	order.appendNote(fmt.Sprintf("shipped via %s (%s)", carrier, trackingNumber))
	if note != "" {
		order.appendNote(note)
	}

	m.log.Info().Str("order_id", orderID).Str("carrier", carrier).Msg("Order fulfilled")
	return &FulfillmentResult{Success: true, OrderID: orderID, Status: StatusShipped}, nil
}

// ProcessReturn moves a DELIVERED or SHIPPED order to RETURNED. A zero
// refund defaults to the order total.
func (m *Manager) ProcessReturn(ctx context.Context, orderID, reason string, refundAmount decimal.Decimal, note string) (*FulfillmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, order, ok := m.orderLock(orderID)
	if !ok {
		return &FulfillmentResult{Success: false, OrderID: orderID, Errors: []string{fmt.Sprintf("Order not found: %s", orderID)}}, nil
	}
	lock.Lock()
	defer lock.Unlock()

	if order.Status != StatusDelivered && order.Status != StatusShipped {
		return &FulfillmentResult{
			Success: false,
			OrderID: orderID,
			Status:  order.Status,
			Errors:  []string{fmt.Sprintf("Order cannot be returned in status: %s", order.Status)},
		}, nil
	}

	if refundAmount.IsZero() {
		refundAmount = order.OrderTotal
	}
	if err := order.setStatus(StatusReturned); err != nil {
		return nil, err
	}
	order.RefundAmount = refundAmount
	order.appendNote(fmt.Sprintf("returned: %s, refund %s", reason, refundAmount.StringFixed(2)))
	if note != "" {
		order.appendNote(note)
	}

	m.log.Info().Str("order_id", orderID).Str("refund", refundAmount.StringFixed(2)).Msg("Return processed")
	return &FulfillmentResult{Success: true, OrderID: orderID, Status: StatusReturned}, nil
}

// MarkDelivered records carrier delivery confirmation
func (m *Manager) MarkDelivered(orderID string) error {
	lock, order, ok := m.orderLock(orderID)
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	lock.Lock()
	defer lock.Unlock()

	if order.Status != StatusShipped {
		return fmt.Errorf("order %s is %s, not shipped", orderID, order.Status)
	}
	if err := order.setStatus(StatusDelivered); err != nil {
		return err
	}
	order.appendNote("delivery confirmed")
	return nil
}

// CancelOrder cancels an order that has not shipped
func (m *Manager) CancelOrder(orderID, reason string) (*FulfillmentResult, error) {
	lock, order, ok := m.orderLock(orderID)
	if !ok {
		return &FulfillmentResult{Success: false, OrderID: orderID, Errors: []string{fmt.Sprintf("Order not found: %s", orderID)}}, nil
	}
	lock.Lock()
	defer lock.Unlock()

	if order.Status != StatusConfirmed && order.Status != StatusProcessing {
		return &FulfillmentResult{
			Success: false,
			OrderID: orderID,
			Status:  order.Status,
			Errors:  []string{fmt.Sprintf("Order cannot be cancelled in status: %s", order.Status)},
		}, nil
	}
	if err := order.setStatus(StatusCancelled); err != nil {
		return nil, err
	}
	order.appendNote(strings.TrimSpace("cancelled: " + reason))
	return &FulfillmentResult{Success: true, OrderID: orderID, Status: StatusCancelled}, nil
}
